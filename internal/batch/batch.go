// Package batch reads batches of reference updates from files.
//
// Two formats are supported. The YAML format is a list of updates:
//
//	- direct:
//	    name: refs/heads/main
//	    target: 8b1a9953c4611296a827abf8c47804d7e6c49c6b
//	    no-ff: reject
//	    previous: {must-exist-and-match: 2b9c0f1e3a7d4c5b6e8f9a0b1c2d3e4f5a6b7c8d}
//	- symbolic:
//	    name: HEAD
//	    target: refs/heads/main
//	- remove:
//	    name: refs/heads/old
//
// The text format has one command per line (see ParseCmd):
//
//	update refs/heads/main 8b1a9953c4611296a827abf8c47804d7e6c49c6b --no-ff reject
//	symref HEAD refs/heads/main
//	delete refs/heads/old
package batch

import (
	"bytes"
	"io"
	"strings"

	"emperror.dev/errors"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/go-git/go-git/v5/plumbing"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// ParseFormat returns the format with the given name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatYAML, FormatText:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", errors.Errorf("unknown batch format %q (expected yaml or text)", s)
	}
}

// FormatForPath guesses the format of a batch file from its extension.
func FormatForPath(path string) Format {
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		return FormatYAML
	}
	return FormatText
}

// Read decodes all updates from r.
func Read(r io.Reader, format Format) ([]refs.Update, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read batch")
	}
	switch format {
	case FormatYAML:
		return DecodeYAML(bytes.NewReader(data))
	case FormatText:
		return ParseText(string(data))
	default:
		return nil, errors.Errorf("unknown batch format %q", format)
	}
}

// parseOid parses a full hex object ID.
func parseOid(s string) (plumbing.Hash, error) {
	oid, ok := refs.ParseOid(s)
	if !ok {
		return oid, errors.Errorf("invalid object ID %q", s)
	}
	return oid, nil
}
