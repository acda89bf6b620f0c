package main

import (
	"fmt"
	"os"
	"path/filepath"

	"emperror.dev/errors"
	"github.com/aviator-co/refdb/internal/config"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/aviator-co/refdb/internal/utils/colors"
	"github.com/aviator-co/refdb/internal/utils/errutils"
	"github.com/kr/text"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootFlags struct {
	Debug     bool
	Directory string
	Backend   string
	Database  string
}

var RootCmd = &cobra.Command{
	Use:   "refdb",
	Short: "transactional reference database",

	// main prints errors itself, and a failed update is not a usage error.
	SilenceErrors: true,
	SilenceUsage:  true,

	// Completion scripts are still generated but not listed in help.
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},

	// Configuration is resolved once for every subcommand.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if rootFlags.Debug {
			logrus.SetLevel(logrus.DebugLevel)
			logrus.WithField("refdb_version", config.Version).Debug("enabled debug logging")
		}

		var configDirs []string
		if rootFlags.Directory != "" {
			// Repository-specific configuration (e.g., $REPO/.refdb/config.yaml).
			configDirs = append(configDirs, filepath.Join(rootFlags.Directory, ".refdb"))
		}

		// A missing config file is fine; only an unreadable one is an error.
		didLoadConfig, err := config.Load(configDirs)
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}
		logrus.WithFields(logrus.Fields{
			"config_file": didLoadConfig,
			"backend":     config.Current.Storage.Backend,
		}).Debug("resolved configuration")

		// Flags take precedence over the configuration.
		if rootFlags.Directory != "" {
			config.Current.Objects.Path = rootFlags.Directory
		}
		if rootFlags.Backend != "" {
			config.Current.Storage.Backend = rootFlags.Backend
		}
		if rootFlags.Database != "" {
			config.Current.Storage.Path = rootFlags.Database
		}
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVar(
		&rootFlags.Debug, "debug", false,
		"enable verbose debug logging",
	)
	RootCmd.PersistentFlags().StringVarP(
		&rootFlags.Directory, "repo", "C", "",
		"directory of the git repository whose objects are used for fast-forward checks",
	)
	RootCmd.PersistentFlags().StringVar(
		&rootFlags.Backend, "backend", "",
		"storage backend (json, sqlite, bolt or memory)",
	)
	RootCmd.PersistentFlags().StringVar(
		&rootFlags.Database, "db", "",
		"path of the reference database",
	)
	RootCmd.AddCommand(
		applyCmd,
		deleteRefCmd,
		reflogCmd,
		showRefCmd,
		symbolicRefCmd,
		updateRefCmd,
		versionCmd,
	)
}

// Exit codes.
const (
	exitError = 1
	// exitRetry is used for failures that may succeed when retried.
	exitRetry = 2
)

func main() {
	if err := RootCmd.Execute(); err != nil {
		_, _ = fmt.Fprint(os.Stderr, renderError(err, rootFlags.Debug))
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errutils.IsAny(err, refs.ErrLockFailed, refs.ErrConcurrentUpdate) {
		return exitRetry
	}
	return exitError
}

func renderError(err error, debug bool) string {
	if errors.Is(err, errRejected) {
		// The rejections have already been printed.
		return ""
	}
	if debug {
		// %+v includes the stack trace recorded by emperror.
		return fmt.Sprintf("error: %s\n%s\n", err, text.Indent(fmt.Sprintf("%+v", err), "\t"))
	}
	msg := fmt.Sprintf("error: %s\n", err)
	if nonFF, ok := errutils.As[*refs.NonFastForwardError](err); ok {
		msg += colors.Faint(fmt.Sprintf(
			"hint: %s is at %s; use --no-ff allow to move it anyway\n",
			nonFF.Name, shortOid(nonFF.Old),
		))
	} else if typeChange, ok := errutils.As[*refs.TypeChangeError](err); ok {
		msg += colors.Faint(fmt.Sprintf(
			"hint: %s is a direct reference; use --type-change allow to replace it\n",
			typeChange.Name,
		))
	}
	return msg
}
