package main

import (
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/cobra"
)

var deleteRefFlags struct {
	Previous string
	Message  string
}

var deleteRefCmd = &cobra.Command{
	Use:   "delete-ref <ref>",
	Short: "remove a reference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		previous, err := refs.ParseRemove(deleteRefFlags.Previous)
		if err != nil {
			return err
		}
		return applyUpdates(cmd.Context(), []refs.Update{refs.RemoveUpdate{
			Name:     plumbing.ReferenceName(args[0]),
			Previous: previous,
			Message:  deleteRefFlags.Message,
		}})
	},
}

func init() {
	deleteRefCmd.Flags().StringVar(
		&deleteRefFlags.Previous, "previous", "must-exist",
		"guard on the current value (must-exist or must-exist-and-match(<oid>))",
	)
	deleteRefCmd.Flags().StringVarP(
		&deleteRefFlags.Message, "message", "m", "",
		"reflog message",
	)
}
