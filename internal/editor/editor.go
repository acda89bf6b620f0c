// Package editor lets the user edit text in their preferred editor.
package editor

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"emperror.dev/errors"
	"github.com/kballard/go-shellquote"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Text is the initial content of the file.
	Text string
	// TmpFilePattern is passed to os.CreateTemp. The extension helps editors
	// pick a syntax.
	TmpFilePattern string
	// CommentPrefix marks lines that are dropped from the result. Nothing is
	// dropped if it is empty.
	CommentPrefix string
	// Command is the editor invocation in shell syntax, e.g. "code --wait".
	// If empty, DefaultCommand is used.
	Command string
}

// CommandNoOp skips the editor and returns the text as-is (minus comments),
// like git does for GIT_EDITOR=:.
const CommandNoOp = ":"

// EnvVars are consulted in order by DefaultCommand.
var EnvVars = []string{"REFDB_EDITOR", "VISUAL", "EDITOR"}

// Launch writes the text to a temporary file, waits for the editor to exit and
// returns the edited text.
func Launch(ctx context.Context, config Config) (string, error) {
	command := config.Command
	if command == "" {
		command = DefaultCommand()
	}
	if command == CommandNoOp {
		return stripComments(strings.NewReader(config.Text), config.CommentPrefix)
	}
	argv, err := shellquote.Split(command)
	if err != nil || len(argv) == 0 {
		return "", errors.Errorf("invalid editor command %q", command)
	}

	pattern := config.TmpFilePattern
	if pattern == "" {
		pattern = "refdb-*.txt"
	}
	path, err := writeTemp(pattern, config.Text)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			logrus.WithError(err).WithField("path", path).Warn("failed to remove temporary file")
		}
	}()

	cmd := exec.CommandContext(ctx, argv[0], append(argv[1:], path)...)
	var stderr bytes.Buffer
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = io.MultiWriter(os.Stderr, &stderr)
	logrus.WithField("cmd", cmd.String()).Debug("launching editor")
	if err := cmd.Run(); err != nil {
		return "", errors.WrapIff(err, "editor %q failed: %s", argv[0], strings.TrimSpace(stderr.String()))
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.WrapIf(err, "failed to read edited file")
	}
	defer f.Close()
	return stripComments(f, config.CommentPrefix)
}

func writeTemp(pattern, text string) (string, error) {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", errors.WrapIf(err, "failed to create temporary file")
	}
	_, werr := tmp.WriteString(text)
	cerr := tmp.Close()
	if err := errors.Combine(werr, cerr); err != nil {
		_ = os.Remove(tmp.Name())
		return "", errors.WrapIf(err, "failed to write temporary file")
	}
	return tmp.Name(), nil
}

// DefaultCommand returns the first editor set in EnvVars, falling back to vi
// (git's default).
func DefaultCommand() string {
	for _, env := range EnvVars {
		if editor := os.Getenv(env); editor != "" {
			return editor
		}
	}
	return "vi"
}

func stripComments(r io.Reader, prefix string) (string, error) {
	var out strings.Builder
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		line := scan.Text()
		if prefix != "" && strings.HasPrefix(line, prefix) {
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.String(), scan.Err()
}
