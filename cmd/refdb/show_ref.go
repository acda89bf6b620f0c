package main

import (
	"fmt"

	"github.com/aviator-co/refdb/internal/refs"
	"github.com/spf13/cobra"
)

var showRefFlags struct {
	Namespace string
}

var showRefCmd = &cobra.Command{
	Use:   "show-ref [<pattern>]",
	Short: "list references",
	Long: `List references whose name matches the pattern.

A pattern without glob characters matches the reference with that name and
every reference below it (e.g., "refs/heads" matches "refs/heads/main"). A
"*" matches within one path component and "**" matches across components.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var raw string
		if len(args) > 0 {
			raw = args[0]
		}
		var pattern refs.Pattern
		var err error
		if showRefFlags.Namespace != "" {
			pattern, err = refs.Namespace(showRefFlags.Namespace).QualifyPattern(raw)
		} else {
			pattern, err = refs.CompilePattern(raw)
		}
		if err != nil {
			return err
		}

		db, closeDB, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer closeDB()

		references := db.FindReferences(pattern).All()
		if ns := refs.Namespace(showRefFlags.Namespace); ns != "" {
			// Show the logical names.
			for i, ref := range references {
				if name, ok := ns.Strip(ref.Name); ok {
					references[i].Name = name
				}
			}
		}
		fmt.Print(renderRefs(references))
		return nil
	},
}

func init() {
	showRefCmd.Flags().StringVar(
		&showRefFlags.Namespace, "namespace", "",
		"only list references in the given namespace",
	)
}
