package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/aviator-co/refdb/internal/batch"
	"github.com/aviator-co/refdb/internal/refdb"
	"github.com/aviator-co/refdb/internal/refs"
	"github.com/aviator-co/refdb/internal/utils/colors"
	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/go-git/go-git/v5/plumbing"
)

func shortOid(oid plumbing.Hash) string {
	if oid.IsZero() {
		return "(none)"
	}
	return oid.String()[:7]
}

func renderApplied(applied *refs.Applied) string {
	var sb strings.Builder
	if len(applied.Updated) == 0 && len(applied.Rejected) == 0 {
		sb.WriteString(colors.Faint("No references were changed.") + "\n")
		return sb.String()
	}
	if len(applied.Updated) > 0 {
		_, _ = fmt.Fprintf(&sb, "Updated %s:\n", english.Plural(len(applied.Updated), "reference", ""))
		for _, u := range applied.Updated {
			sb.WriteString("  ")
			sb.WriteString(colors.RefName(u.RefName().String()))
			sb.WriteString(": ")
			switch u := u.(type) {
			case refs.UpdatedDirect:
				if u.Previous.IsZero() {
					sb.WriteString(colors.Success("created at " + shortOid(u.Target)))
				} else {
					sb.WriteString(shortOid(u.Previous) + " -> " + colors.Success(shortOid(u.Target)))
				}
			case refs.UpdatedSymbolic:
				sb.WriteString("now points to " + colors.Symbolic(u.TargetName.String()))
			case refs.Removed:
				sb.WriteString(colors.Warning("removed") + colors.Faint(" (was "+shortOid(u.Previous)+")"))
			}
			sb.WriteString("\n")
		}
	}
	if len(applied.Rejected) > 0 {
		_, _ = fmt.Fprintf(&sb, "Rejected %s:\n", english.Plural(len(applied.Rejected), "update", ""))
		for _, r := range applied.Rejected {
			sb.WriteString("  " + colors.CliCmd(batch.FormatCmd(r.Update)) + "\n")
			sb.WriteString("    " + colors.Failure(r.Reason.Error()) + "\n")
		}
	}
	return sb.String()
}

func renderRefs(references []refs.Reference) string {
	var sb strings.Builder
	for _, ref := range references {
		if ref.Target.IsSymbolic() {
			_, _ = fmt.Fprintf(&sb, "%s %s\n", colors.Symbolic(ref.Target.String()), ref.Name)
		} else {
			_, _ = fmt.Fprintf(&sb, "%s %s\n", ref.Target, ref.Name)
		}
	}
	return sb.String()
}

// renderReflog prints the newest entry first, like git reflog.
func renderReflog(name plumbing.ReferenceName, entries []refdb.ReflogEntry, now time.Time) string {
	var sb strings.Builder
	if len(entries) == 0 {
		_, _ = fmt.Fprintf(&sb, "%s\n", colors.Faint("No reflog entries for "+name.String()+"."))
		return sb.String()
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		var action string
		switch {
		case e.Old.IsZero():
			action = colors.Success("created")
		case e.New.IsZero():
			action = colors.Warning("removed")
		default:
			action = "updated"
		}
		_, _ = fmt.Fprintf(
			&sb, "%s@{%d}: %s %s -> %s %s",
			name, len(entries)-1-i, action, shortOid(e.Old), shortOid(e.New),
			colors.Faint("("+humanize.RelTime(e.Time, now, "ago", "from now")+")"),
		)
		if e.Message != "" {
			sb.WriteString(": " + e.Message)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
