package batch

import (
	"io"

	"emperror.dev/errors"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/go-git/go-git/v5/plumbing"
	"gopkg.in/yaml.v3"
)

type yamlItem struct {
	Direct   *yamlDirect   `yaml:"direct"`
	Symbolic *yamlSymbolic `yaml:"symbolic"`
	Remove   *yamlRemove   `yaml:"remove"`
}

type yamlDirect struct {
	Name     string       `yaml:"name"`
	Target   string       `yaml:"target"`
	NoFF     string       `yaml:"no-ff"`
	Previous yamlPrevious `yaml:"previous"`
	Message  string       `yaml:"message"`
}

type yamlSymbolic struct {
	Name   string `yaml:"name"`
	Target string `yaml:"target"`
	// Oid optionally moves the target reference as well.
	Oid        string       `yaml:"oid"`
	TypeChange string       `yaml:"type-change"`
	Previous   yamlPrevious `yaml:"previous"`
	Message    string       `yaml:"message"`
}

type yamlRemove struct {
	Name     string       `yaml:"name"`
	Previous yamlPrevious `yaml:"previous"`
	Message  string       `yaml:"message"`
}

// yamlPrevious is either a bare guard kind ("any", "must-exist",
// "must-not-exist") or a single-entry mapping from a matching guard kind to
// the expected object ID.
type yamlPrevious struct {
	kind refs.EditKind
	oid  plumbing.Hash
	set  bool
}

func (p *yamlPrevious) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		switch value.Value {
		case refs.EditAny.String():
			p.kind = refs.EditAny
		case refs.EditMustExist.String():
			p.kind = refs.EditMustExist
		case refs.EditMustNotExist.String():
			p.kind = refs.EditMustNotExist
		default:
			return errors.Errorf("line %d: unknown guard %q", value.Line, value.Value)
		}
	case yaml.MappingNode:
		var m map[string]string
		if err := value.Decode(&m); err != nil {
			return err
		}
		if len(m) != 1 {
			return errors.Errorf("line %d: guard must have exactly one entry", value.Line)
		}
		for k, v := range m {
			switch k {
			case refs.EditMustExistAndMatch.String():
				p.kind = refs.EditMustExistAndMatch
			case refs.EditMayExistAndMatch.String():
				p.kind = refs.EditMayExistAndMatch
			default:
				return errors.Errorf("line %d: unknown guard %q", value.Line, k)
			}
			oid, err := parseOid(v)
			if err != nil {
				return errors.WrapIff(err, "line %d", value.Line)
			}
			p.oid = oid
		}
	default:
		return errors.Errorf("line %d: guard must be a string or a mapping", value.Line)
	}
	p.set = true
	return nil
}

func (p yamlPrevious) edit() refs.Edit {
	return refs.Edit{Kind: p.kind, Oid: p.oid}
}

func (p yamlPrevious) remove() (refs.Remove, error) {
	switch {
	case !p.set || p.kind == refs.EditMustExist:
		return refs.RemoveExisting(), nil
	case p.kind == refs.EditMustExistAndMatch:
		return refs.RemoveMatching(p.oid), nil
	default:
		return refs.Remove{}, errors.Errorf("guard %s cannot be used to remove a reference", p.kind)
	}
}

func parsePolicy(s string) (refs.Policy, error) {
	if s == "" {
		return refs.Abort, nil
	}
	return refs.ParsePolicy(s)
}

// DecodeYAML decodes a YAML batch. Omitted policies default to abort and an
// omitted guard places no constraint (removals require the reference to
// exist).
func DecodeYAML(r io.Reader) ([]refs.Update, error) {
	var nodes []yaml.Node
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&nodes); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "invalid batch")
	}

	updates := make([]refs.Update, 0, len(nodes))
	for i := range nodes {
		node := &nodes[i]
		update, err := decodeItem(node)
		if err != nil {
			return nil, errors.WrapIff(err, "invalid update %d (line %d)", i, node.Line)
		}
		updates = append(updates, update)
	}
	return updates, nil
}

func decodeItem(node *yaml.Node) (refs.Update, error) {
	var item yamlItem
	if err := node.Decode(&item); err != nil {
		return nil, err
	}
	n := 0
	for _, set := range []bool{item.Direct != nil, item.Symbolic != nil, item.Remove != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return nil, errors.New("exactly one of direct, symbolic or remove must be given")
	}

	switch {
	case item.Direct != nil:
		d := item.Direct
		target, err := parseOid(d.Target)
		if err != nil {
			return nil, err
		}
		noFF, err := parsePolicy(d.NoFF)
		if err != nil {
			return nil, err
		}
		return refs.DirectUpdate{
			Name:     plumbing.ReferenceName(d.Name),
			Target:   target,
			NoFF:     noFF,
			Previous: d.Previous.edit(),
			Message:  d.Message,
		}, nil

	case item.Symbolic != nil:
		s := item.Symbolic
		var oid plumbing.Hash
		if s.Oid != "" {
			var err error
			if oid, err = parseOid(s.Oid); err != nil {
				return nil, err
			}
		}
		typeChange, err := parsePolicy(s.TypeChange)
		if err != nil {
			return nil, err
		}
		return refs.SymbolicUpdate{
			Name:       plumbing.ReferenceName(s.Name),
			Target:     refs.SymrefTarget{Name: plumbing.ReferenceName(s.Target), Target: oid},
			TypeChange: typeChange,
			Previous:   s.Previous.edit(),
			Message:    s.Message,
		}, nil

	default:
		r := item.Remove
		previous, err := r.Previous.remove()
		if err != nil {
			return nil, err
		}
		return refs.RemoveUpdate{
			Name:     plumbing.ReferenceName(r.Name),
			Previous: previous,
			Message:  r.Message,
		}, nil
	}
}
