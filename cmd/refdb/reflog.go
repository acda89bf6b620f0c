package main

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/cobra"
)

var reflogCmd = &cobra.Command{
	Use:   "reflog <ref>",
	Short: "show the history of a reference",
	Long: `Show the history of a reference, newest change first.

The history of a removed reference is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, closeDB, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer closeDB()

		name := plumbing.ReferenceName(args[0])
		entries, err := db.Reflog(ctx, name)
		if err != nil {
			return err
		}
		fmt.Print(renderReflog(name, entries, time.Now()))
		return nil
	},
}
