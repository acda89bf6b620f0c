package jsonfiledb

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"emperror.dev/errors"
	"github.com/aviator-co/refdb/internal/refdb"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/go-git/go-git/v5/plumbing"
)

// state is the JSON representation of the database. Targets use the loose ref
// format and hashes are stored as hex strings.
type state struct {
	Refs   map[string]string        `json:"refs"`
	Reflog map[string][]reflogEntry `json:"reflog,omitempty"`
}

type reflogEntry struct {
	Old     string    `json:"old"`
	New     string    `json:"new"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
	TxID    string    `json:"tx,omitempty"`
}

func readState(path string) (*state, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.WrapIff(err, "failed to read refdb state file %q", path)
	}
	if len(data) == 0 {
		data = []byte("{}")
	}
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.WrapIff(err, "failed to read refdb state file %q", path)
	}
	if s.Refs == nil {
		s.Refs = map[string]string{}
	}
	if s.Reflog == nil {
		s.Reflog = map[string][]reflogEntry{}
	}
	return &s, nil
}

// copy returns a copy of the state that can be modified without affecting d.
// Reflog slices are capped so that appends never write into d's arrays.
func (d *state) copy() *state {
	next := &state{
		Refs:   make(map[string]string, len(d.Refs)),
		Reflog: make(map[string][]reflogEntry, len(d.Reflog)),
	}
	for k, v := range d.Refs {
		next.Refs[k] = v
	}
	for k, v := range d.Reflog {
		next.Reflog[k] = v[:len(v):len(v)]
	}
	return next
}

func (d *state) apply(c refdb.Change) {
	name := c.Name.String()
	if c.Deleted() {
		delete(d.Refs, name)
	} else {
		d.Refs[name] = c.Target.String()
	}
	d.Reflog[name] = append(d.Reflog[name], reflogEntry{
		Old:     c.Reflog.Old.String(),
		New:     c.Reflog.New.String(),
		Message: c.Reflog.Message,
		Time:    c.Reflog.Time.UTC(),
		TxID:    c.Reflog.TxID,
	})
}

func (d *state) references() (map[plumbing.ReferenceName]refs.Target, error) {
	m := make(map[plumbing.ReferenceName]refs.Target, len(d.Refs))
	for name, text := range d.Refs {
		target, err := refs.ParseTarget(text)
		if err != nil {
			return nil, errors.WrapIff(err, "invalid target of %s", name)
		}
		m[plumbing.ReferenceName(name)] = target
	}
	return m, nil
}

func (d *state) reflog(name plumbing.ReferenceName) ([]refdb.ReflogEntry, error) {
	stored := d.Reflog[name.String()]
	entries := make([]refdb.ReflogEntry, 0, len(stored))
	for i, e := range stored {
		old, ok := refs.ParseOid(e.Old)
		if !ok {
			return nil, errors.Errorf("invalid old oid %q in reflog entry %d of %s", e.Old, i, name)
		}
		n, ok := refs.ParseOid(e.New)
		if !ok {
			return nil, errors.Errorf("invalid new oid %q in reflog entry %d of %s", e.New, i, name)
		}
		entries = append(entries, refdb.ReflogEntry{
			Old:     old,
			New:     n,
			Message: e.Message,
			Time:    e.Time,
			TxID:    e.TxID,
		})
	}
	return entries, nil
}

// write replaces the file at path with the state. The state is written to a
// temporary file in the same directory first so that readers never observe a
// partially written file.
func (d *state) write(path string) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.WrapIff(err, "failed to write refdb state file")
	}
	defer func() {
		// No-op once the rename has succeeded.
		_ = os.Remove(f.Name())
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		_ = f.Close()
		return errors.WrapIff(err, "failed to write refdb state file")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.WrapIff(err, "failed to sync refdb state file")
	}
	if err := f.Close(); err != nil {
		return errors.WrapIff(err, "failed to write refdb state file")
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return errors.WrapIff(err, "failed to replace refdb state file %q", path)
	}
	return nil
}
