/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package remedy

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/waigani/diffparser"
)

// applyUnifiedDiff parses a unified diff and applies it to the workspace,
// returning the touched paths. Every context and removed line is verified
// against the working copy before anything is written, so a hunk that does
// not apply leaves the tree untouched.
func applyUnifiedDiff(w *Workspace, diffText string) ([]string, error) {
	diff, err := diffparser.Parse(normalizeContextLines(diffText))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}
	if len(diff.Files) == 0 {
		return nil, fmt.Errorf("diff contains no file changes")
	}

	type pending struct {
		path    string
		content string
		remove  bool
	}
	var staged []pending

	for _, f := range diff.Files {
		path := diffPath(f)
		if path == "" {
			return nil, fmt.Errorf("diff file entry has no usable path")
		}
		full, err := w.resolve(path)
		if err != nil {
			return nil, err
		}

		switch f.Mode {
		case diffparser.NEW:
			content, err := newFileContent(f)
			if err != nil {
				return nil, fmt.Errorf("file %s: %w", path, err)
			}
			staged = append(staged, pending{path: full, content: content})

		case diffparser.DELETED:
			if _, err := os.Stat(full); err != nil {
				return nil, fmt.Errorf("deleting %s: %w", path, err)
			}
			staged = append(staged, pending{path: full, remove: true})

		default:
			orig, err := w.Read(path)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
			patched, err := applyHunks(orig, f)
			if err != nil {
				return nil, fmt.Errorf("file %s: %w", path, err)
			}
			staged = append(staged, pending{path: full, content: patched})
		}
	}

	paths := make([]string, 0, len(staged))
	for _, p := range staged {
		if p.remove {
			if err := os.Remove(p.path); err != nil {
				return nil, err
			}
		} else {
			if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(p.path, []byte(p.content), 0o644); err != nil {
				return nil, err
			}
		}
		rel, err := filepath.Rel(w.dir, p.path)
		if err != nil {
			return nil, err
		}
		paths = append(paths, filepath.ToSlash(rel))
	}
	return paths, nil
}

var hunkHeaderPattern = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// normalizeContextLines rewrites empty lines inside hunk bodies to the
// canonical " " context form. Models routinely emit blank context lines
// with no leading space, and the parser drops truly empty lines, which
// would shift every subsequent line out of position. The hunk header's
// declared lengths bound the body, so blank separators between file
// sections and the trailing newline are left alone.
func normalizeContextLines(diffText string) string {
	lines := strings.Split(diffText, "\n")
	var origLeft, newLeft int
	for i, l := range lines {
		if m := hunkHeaderPattern.FindStringSubmatch(l); m != nil {
			origLeft = rangeLength(m[2])
			newLeft = rangeLength(m[4])
			continue
		}
		if origLeft <= 0 && newLeft <= 0 {
			continue
		}
		if l == "" {
			lines[i] = " "
			l = " "
		}
		switch {
		case strings.HasPrefix(l, `\`): // "\ No newline at end of file"
		case strings.HasPrefix(l, "+"):
			newLeft--
		case strings.HasPrefix(l, "-"):
			origLeft--
		default:
			origLeft--
			newLeft--
		}
	}
	return strings.Join(lines, "\n")
}

// rangeLength reads a hunk range length, which defaults to 1 when the
// header omits it.
func rangeLength(s string) int {
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return n
}

// diffPath picks the post-image path, falling back to the pre-image for
// deletions, and strips the conventional a/ and b/ prefixes.
func diffPath(f *diffparser.DiffFile) string {
	path := f.NewName
	if f.Mode == diffparser.DELETED || path == "" || path == "/dev/null" {
		path = f.OrigName
	}
	path = strings.TrimPrefix(path, "a/")
	path = strings.TrimPrefix(path, "b/")
	if path == "/dev/null" {
		return ""
	}
	return path
}

// newFileContent assembles a created file from its added lines.
func newFileContent(f *diffparser.DiffFile) (string, error) {
	var sb strings.Builder
	for _, h := range f.Hunks {
		for _, line := range h.WholeRange.Lines {
			switch line.Mode {
			case diffparser.ADDED:
				sb.WriteString(line.Content)
				sb.WriteString("\n")
			case diffparser.REMOVED, diffparser.UNCHANGED:
				return "", fmt.Errorf("new file hunk contains non-added line %q", line.Content)
			}
		}
	}
	return sb.String(), nil
}

// applyHunks replays the file's hunks against the original content,
// verifying every context and removed line along the way.
func applyHunks(orig string, f *diffparser.DiffFile) (string, error) {
	trailingNewline := strings.HasSuffix(orig, "\n")
	lines := strings.Split(orig, "\n")
	if trailingNewline {
		lines = lines[:len(lines)-1]
	}

	var out []string
	cursor := 0 // next unconsumed index into lines

	for _, h := range f.Hunks {
		start := h.OrigRange.Start - 1
		if start < cursor || start > len(lines) {
			return "", fmt.Errorf("hunk at line %d overlaps or exceeds the file (%d lines)", h.OrigRange.Start, len(lines))
		}
		out = append(out, lines[cursor:start]...)
		cursor = start

		for _, line := range h.WholeRange.Lines {
			switch line.Mode {
			case diffparser.UNCHANGED, diffparser.REMOVED:
				if cursor >= len(lines) {
					return "", fmt.Errorf("hunk expects %q past end of file", line.Content)
				}
				if lines[cursor] != line.Content {
					return "", fmt.Errorf("context mismatch at line %d: have %q, diff expects %q", cursor+1, lines[cursor], line.Content)
				}
				if line.Mode == diffparser.UNCHANGED {
					out = append(out, lines[cursor])
				}
				cursor++
			case diffparser.ADDED:
				out = append(out, line.Content)
			}
		}
	}

	out = append(out, lines[cursor:]...)
	result := strings.Join(out, "\n")
	if trailingNewline && result != "" {
		result += "\n"
	}
	return result, nil
}
