package main

import (
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/cobra"
)

var updateRefFlags struct {
	Previous string
	NoFF     string
	Message  string
}

var updateRefCmd = &cobra.Command{
	Use:   "update-ref <ref> <oid>",
	Short: "point a reference at an object",
	Long: `Point a reference at an object, creating the reference if needed.

If the reference already exists, the update must be a fast-forward unless
--no-ff is set to "allow" (or "reject", which only rejects this update
instead of failing).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		oid, err := parseOidArg(args[1])
		if err != nil {
			return err
		}
		previous, err := refs.ParseEdit(updateRefFlags.Previous)
		if err != nil {
			return err
		}
		noFF, err := refs.ParsePolicy(updateRefFlags.NoFF)
		if err != nil {
			return err
		}
		return applyUpdates(cmd.Context(), []refs.Update{refs.DirectUpdate{
			Name:     plumbing.ReferenceName(args[0]),
			Target:   oid,
			NoFF:     noFF,
			Previous: previous,
			Message:  updateRefFlags.Message,
		}})
	},
}

func init() {
	updateRefCmd.Flags().StringVar(
		&updateRefFlags.Previous, "previous", "any",
		"guard on the current value (any, must-exist, must-not-exist, must-exist-and-match(<oid>) or may-exist-and-match(<oid>))",
	)
	updateRefCmd.Flags().StringVar(
		&updateRefFlags.NoFF, "no-ff", "abort",
		"what to do if the update is not a fast-forward (abort, reject or allow)",
	)
	updateRefCmd.Flags().StringVarP(
		&updateRefFlags.Message, "message", "m", "",
		"reflog message",
	)
}
