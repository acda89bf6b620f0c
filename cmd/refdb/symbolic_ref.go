package main

import (
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/cobra"
)

var symbolicRefFlags struct {
	Oid        string
	Previous   string
	TypeChange string
	Message    string
}

var symbolicRefCmd = &cobra.Command{
	Use:   "symbolic-ref <ref> <target-ref>",
	Short: "make a reference point at another reference",
	Long: `Make a reference an alias of another reference.

With --oid, the target reference is moved to the given object as well (which
must be a fast-forward). Otherwise the target reference is left untouched and
may not exist.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var oid plumbing.Hash
		if symbolicRefFlags.Oid != "" {
			var err error
			if oid, err = parseOidArg(symbolicRefFlags.Oid); err != nil {
				return err
			}
		}
		previous, err := refs.ParseEdit(symbolicRefFlags.Previous)
		if err != nil {
			return err
		}
		typeChange, err := refs.ParsePolicy(symbolicRefFlags.TypeChange)
		if err != nil {
			return err
		}
		return applyUpdates(cmd.Context(), []refs.Update{refs.SymbolicUpdate{
			Name: plumbing.ReferenceName(args[0]),
			Target: refs.SymrefTarget{
				Name:   plumbing.ReferenceName(args[1]),
				Target: oid,
			},
			TypeChange: typeChange,
			Previous:   previous,
			Message:    symbolicRefFlags.Message,
		}})
	},
}

func init() {
	symbolicRefCmd.Flags().StringVar(
		&symbolicRefFlags.Oid, "oid", "",
		"also move the target reference to this object",
	)
	symbolicRefCmd.Flags().StringVar(
		&symbolicRefFlags.Previous, "previous", "any",
		"guard on the object the reference currently resolves to",
	)
	symbolicRefCmd.Flags().StringVar(
		&symbolicRefFlags.TypeChange, "type-change", "abort",
		"what to do if the reference is currently a direct reference (abort, reject or allow)",
	)
	symbolicRefCmd.Flags().StringVarP(
		&symbolicRefFlags.Message, "message", "m", "",
		"reflog message",
	)
}
