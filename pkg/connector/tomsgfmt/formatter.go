// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package tomsgfmt converts tomsg plain text to Matrix HTML.
//
// Known tomsg display names are turned into matrix.to mention anchors. The
// name set is compiled once into a single alternation pattern bounded by
// zero-width word-boundary assertions, so names only match as whole tokens
// and never as substrings of longer words. Text outside of matches is copied
// through unescaped; the output is Matrix HTML only where mentions were
// inserted.
package tomsgfmt

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/aiku/mautrix-tomsg/pkg/connector/matrixto"
)

// MentionTable matches known display names in tomsg messages and maps each
// to its Matrix-side mention target. Build one with NewMentionTable whenever
// the name set changes; the compiled pattern is a snapshot and does not track
// later identity-map mutations.
type MentionTable struct {
	pattern *regexp2.Regexp
	targets map[string]matrixto.Reference
}

// NewMentionTable compiles a mention table from display name to mention
// target. Names are ordered longest first (ties broken lexically) before the
// alternation is built, so the compiled pattern is deterministic and the
// longer of two overlapping candidates wins under leftmost-first matching.
func NewMentionTable(entries map[string]matrixto.Reference) *MentionTable {
	t := &MentionTable{targets: make(map[string]matrixto.Reference, len(entries))}

	names := make([]string, 0, len(entries))
	for name, ref := range entries {
		if name == "" {
			continue
		}
		names = append(names, name)
		t.targets[name] = ref
	}
	if len(names) == 0 {
		return t
	}

	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	var sb strings.Builder
	sb.WriteString(`(?<=^|\W)(`)
	for i, name := range names {
		if i > 0 {
			sb.WriteByte('|')
		}
		// QuoteMeta covers every character regexp2 treats specially.
		sb.WriteString(regexp.QuoteMeta(name))
	}
	sb.WriteString(`)(?=$|\W)`)

	t.pattern = regexp2.MustCompile(sb.String(), regexp2.None)
	return t
}

// Len returns the number of names in the table.
func (t *MentionTable) Len() int {
	return len(t.targets)
}

// Convert replaces every whole-token occurrence of a known name with a
// matrix.to anchor linking to its mention target. Matches are found against
// the original text and applied left to right; because each inserted anchor
// changes the length, later match offsets are shifted by the accumulated
// delta. Offsets are counted in runes, so replacements always land on
// codepoint boundaries and substituted regions are never re-scanned.
func (t *MentionTable) Convert(s string) string {
	if t.pattern == nil {
		return s
	}

	result := []rune(s)
	delta := 0

	m, err := t.pattern.FindStringMatch(s)
	for err == nil && m != nil {
		name := m.String()
		if ref, ok := t.targets[name]; ok {
			anchor := []rune(`<a href="` + ref.MatrixToURL() + `">` + name + `</a>`)
			start := m.Index + delta
			end := start + m.Length
			result = append(result[:start], append(anchor, result[end:]...)...)
			delta += len(anchor) - m.Length
		}
		m, err = t.pattern.FindNextMatch(m)
	}

	return string(result)
}
