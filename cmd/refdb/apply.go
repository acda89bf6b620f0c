package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"emperror.dev/errors"
	"github.com/aviator-co/refdb/internal/batch"
	"github.com/aviator-co/refdb/internal/config"
	"github.com/aviator-co/refdb/internal/editor"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/aviator-co/refdb/internal/utils/colors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var applyFlags struct {
	Format string
	Edit   bool
	DryRun bool
}

const applyEditHelp = `
# Edit the batch of reference updates above.
# Lines starting with '#' are ignored. Remove every line to cancel.
#
# Commands:
#   update <ref> <oid> [--previous <guard>] [--no-ff abort|reject|allow] [-m <message>]
#   symref <ref> <target-ref> [--oid <oid>] [--previous <guard>] [--type-change abort|reject|allow] [-m <message>]
#   delete <ref> [--previous must-exist|must-exist-and-match(<oid>)] [-m <message>]
#
# Guards: any, must-exist, must-not-exist, must-exist-and-match(<oid>), may-exist-and-match(<oid>)
`

var applyCmd = &cobra.Command{
	Use:   "apply [<file>]",
	Short: "apply a batch of reference updates atomically",
	Long: `Apply a batch of reference updates atomically.

The batch is read from the given file (or standard input if the file is
omitted or "-"). Files ending in .yaml or .yml are read as YAML, other files
as one command per line; use --format to override.

Either every accepted update is applied or, if the batch fails, none is.
Updates that are merely rejected (e.g., because their guard failed) are
reported and the rest of the batch is still applied.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		updates, err := readBatch(args)
		if err != nil {
			return err
		}

		if applyFlags.Edit {
			updates, err = editBatch(cmd.Context(), updates)
			if err != nil {
				return err
			}
			if len(updates) == 0 {
				_, _ = fmt.Fprint(os.Stderr, colors.Warning("Empty batch, nothing to apply."), "\n")
				return nil
			}
		}

		if applyFlags.DryRun {
			fmt.Print(batch.FormatCmds(updates))
			return nil
		}
		logrus.WithField("updates", len(updates)).Debug("applying batch")
		return applyUpdates(cmd.Context(), updates)
	},
}

func readBatch(args []string) ([]refs.Update, error) {
	path := "-"
	if len(args) > 0 {
		path = args[0]
	}
	format := batch.FormatText
	if path != "-" {
		format = batch.FormatForPath(path)
	}
	if applyFlags.Format != "" {
		var err error
		if format, err = batch.ParseFormat(applyFlags.Format); err != nil {
			return nil, err
		}
	}

	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.WrapIff(err, "failed to open batch file %q", path)
		}
		defer f.Close()
		r = f
	}
	return batch.Read(r, format)
}

func editBatch(ctx context.Context, updates []refs.Update) ([]refs.Update, error) {
	var sb strings.Builder
	sb.WriteString(batch.FormatCmds(updates))
	sb.WriteString(applyEditHelp)
	text, err := editor.Launch(ctx, editor.Config{
		Text:           sb.String(),
		TmpFilePattern: "refdb-batch-*.txt",
		CommentPrefix:  "#",
		Command:        config.Current.Editor,
	})
	if err != nil {
		return nil, errors.WrapIf(err, "failed to edit batch")
	}
	return batch.ParseText(text)
}

func init() {
	applyCmd.Flags().StringVar(
		&applyFlags.Format, "format", "",
		"format of the batch (yaml or text)",
	)
	applyCmd.Flags().BoolVar(
		&applyFlags.Edit, "edit", false,
		"edit the batch in an editor before applying it",
	)
	applyCmd.Flags().BoolVar(
		&applyFlags.DryRun, "dry-run", false,
		"print the batch instead of applying it",
	)
}
