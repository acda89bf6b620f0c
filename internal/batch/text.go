package batch

import (
	"fmt"
	"strings"

	"emperror.dev/errors"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/shlex"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/pflag"
)

type ErrInvalidCmd struct {
	Cmd    string
	Reason string
}

func (e ErrInvalidCmd) Error() string {
	return fmt.Sprintf("invalid %s command: %s", e.Cmd, e.Reason)
}

// ParseText parses a batch in the text format. Empty lines and comments
// (starting with #) are ignored.
func ParseText(text string) ([]refs.Update, error) {
	var updates []refs.Update
	for i, line := range strings.Split(text, "\n") {
		update, err := ParseCmd(line)
		if err != nil {
			return nil, errors.WrapIff(err, "line %d", i+1)
		}
		if update != nil {
			updates = append(updates, update)
		}
	}
	return updates, nil
}

// ParseCmd parses a single command. It returns a nil update for a line that
// is empty or only contains a comment.
//
//	update <ref> <oid> [--previous <guard>] [--no-ff <policy>] [-m <message>]
//	symref <ref> <target-ref> [--oid <oid>] [--previous <guard>] [--type-change <policy>] [-m <message>]
//	delete <ref> [--previous <guard>] [-m <message>]
//
// Guards use the format of refs.ParseEdit.
func ParseCmd(line string) (refs.Update, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return nil, errors.Wrap(err, "invalid batch command")
	}
	if len(args) == 0 {
		return nil, nil
	}
	cmdName := args[0]
	args = args[1:]
	switch cmdName {
	case "update", "u":
		return parseUpdateCmd(args)
	case "symref", "s":
		return parseSymrefCmd(args)
	case "delete", "d":
		return parseDeleteCmd(args)
	default:
		return nil, errors.Errorf("unknown batch command %q", cmdName)
	}
}

func parseUpdateCmd(args []string) (refs.Update, error) {
	var previous, noFF, message string
	fs := pflag.NewFlagSet("update", pflag.ContinueOnError)
	fs.StringVar(&previous, "previous", "any", "guard on the current value")
	fs.StringVar(&noFF, "no-ff", "abort", "policy for non-fast-forward updates")
	fs.StringVarP(&message, "message", "m", "", "reflog message")
	if err := fs.Parse(args); err != nil {
		return nil, ErrInvalidCmd{"update", err.Error()}
	}
	if fs.NArg() != 2 {
		return nil, ErrInvalidCmd{"update", "exactly two arguments are required (the reference and the object ID)"}
	}
	oid, err := parseOid(fs.Arg(1))
	if err != nil {
		return nil, ErrInvalidCmd{"update", err.Error()}
	}
	edit, err := refs.ParseEdit(previous)
	if err != nil {
		return nil, ErrInvalidCmd{"update", err.Error()}
	}
	policy, err := refs.ParsePolicy(noFF)
	if err != nil {
		return nil, ErrInvalidCmd{"update", err.Error()}
	}
	return refs.DirectUpdate{
		Name:     plumbing.ReferenceName(fs.Arg(0)),
		Target:   oid,
		NoFF:     policy,
		Previous: edit,
		Message:  message,
	}, nil
}

func parseSymrefCmd(args []string) (refs.Update, error) {
	var oidText, previous, typeChange, message string
	fs := pflag.NewFlagSet("symref", pflag.ContinueOnError)
	fs.StringVar(&oidText, "oid", "", "object ID to move the target reference to")
	fs.StringVar(&previous, "previous", "any", "guard on the current value")
	fs.StringVar(&typeChange, "type-change", "abort", "policy for replacing a direct reference")
	fs.StringVarP(&message, "message", "m", "", "reflog message")
	if err := fs.Parse(args); err != nil {
		return nil, ErrInvalidCmd{"symref", err.Error()}
	}
	if fs.NArg() != 2 {
		return nil, ErrInvalidCmd{"symref", "exactly two arguments are required (the reference and its target)"}
	}
	var oid plumbing.Hash
	if oidText != "" {
		var err error
		if oid, err = parseOid(oidText); err != nil {
			return nil, ErrInvalidCmd{"symref", err.Error()}
		}
	}
	edit, err := refs.ParseEdit(previous)
	if err != nil {
		return nil, ErrInvalidCmd{"symref", err.Error()}
	}
	policy, err := refs.ParsePolicy(typeChange)
	if err != nil {
		return nil, ErrInvalidCmd{"symref", err.Error()}
	}
	return refs.SymbolicUpdate{
		Name:       plumbing.ReferenceName(fs.Arg(0)),
		Target:     refs.SymrefTarget{Name: plumbing.ReferenceName(fs.Arg(1)), Target: oid},
		TypeChange: policy,
		Previous:   edit,
		Message:    message,
	}, nil
}

func parseDeleteCmd(args []string) (refs.Update, error) {
	var previous, message string
	fs := pflag.NewFlagSet("delete", pflag.ContinueOnError)
	fs.StringVar(&previous, "previous", "must-exist", "guard on the current value")
	fs.StringVarP(&message, "message", "m", "", "reflog message")
	if err := fs.Parse(args); err != nil {
		return nil, ErrInvalidCmd{"delete", err.Error()}
	}
	if fs.NArg() != 1 {
		return nil, ErrInvalidCmd{"delete", "exactly one argument is required (the reference to delete)"}
	}
	remove, err := refs.ParseRemove(previous)
	if err != nil {
		return nil, ErrInvalidCmd{"delete", err.Error()}
	}
	return refs.RemoveUpdate{
		Name:     plumbing.ReferenceName(fs.Arg(0)),
		Previous: remove,
		Message:  message,
	}, nil
}

// FormatCmd returns the text form of an update such that ParseCmd parses it
// back into an equal update.
func FormatCmd(update refs.Update) string {
	var args []string
	switch u := update.(type) {
	case refs.DirectUpdate:
		args = []string{"update", u.Name.String(), u.Target.String()}
		if u.Previous.Kind != refs.EditAny {
			args = append(args, "--previous", u.Previous.String())
		}
		if u.NoFF != refs.Abort {
			args = append(args, "--no-ff", u.NoFF.String())
		}
		args = appendMessage(args, u.Message)
	case refs.SymbolicUpdate:
		args = []string{"symref", u.Name.String(), u.Target.Name.String()}
		if !u.Target.Target.IsZero() {
			args = append(args, "--oid", u.Target.Target.String())
		}
		if u.Previous.Kind != refs.EditAny {
			args = append(args, "--previous", u.Previous.String())
		}
		if u.TypeChange != refs.Abort {
			args = append(args, "--type-change", u.TypeChange.String())
		}
		args = appendMessage(args, u.Message)
	case refs.RemoveUpdate:
		args = []string{"delete", u.Name.String()}
		if u.Previous.Kind != refs.RemoveMustExist {
			args = append(args, "--previous", u.Previous.String())
		}
		args = appendMessage(args, u.Message)
	default:
		panic(fmt.Sprintf("invariant error: unsupported update type %T", update))
	}
	return shellquote.Join(args...)
}

func appendMessage(args []string, message string) []string {
	if message == "" {
		return args
	}
	return append(args, "-m", message)
}

// FormatCmds returns the text form of a batch.
func FormatCmds(updates []refs.Update) string {
	var sb strings.Builder
	for _, u := range updates {
		sb.WriteString(FormatCmd(u))
		sb.WriteString("\n")
	}
	return sb.String()
}
