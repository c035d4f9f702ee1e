package unidiff

import (
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

const devNull = "/dev/null"

// FileMap maps a repository-relative filename to its added lines, joined
// with newlines and with the leading '+' removed.
type FileMap map[string]string

// Files returns the filenames in the map in no particular order.
func (m FileMap) Files() []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	return out
}

// ParseBytes is Parse for raw diff bytes.
func ParseBytes(b []byte) FileMap {
	return Parse(string(b))
}

// Parse splits diff text on file headers and collects the added lines of
// each file. It never fails; empty input yields an empty map.
func Parse(text string) FileMap {
	out := FileMap{}
	for _, sec := range splitSections(text) {
		files, err := diff.NewMultiFileDiffReader(strings.NewReader(sec)).ReadAllFiles()
		if err != nil || !hasHunks(files) {
			scanSection(sec, out)
			continue
		}
		for _, fd := range files {
			if len(fd.Hunks) == 0 {
				continue
			}
			name := fileName(fd, sec)
			if name == "" {
				continue
			}
			var added []string
			for _, h := range fd.Hunks {
				added = append(added, addedLines(string(h.Body))...)
			}
			put(out, name, added)
		}
	}
	return out
}

func hasHunks(files []*diff.FileDiff) bool {
	for _, fd := range files {
		if len(fd.Hunks) > 0 {
			return true
		}
	}
	return false
}

// splitSections cuts the diff at every "diff --git" header. Text without
// git headers comes back as a single section.
func splitSections(diff string) []string {
	if strings.TrimSpace(diff) == "" {
		return nil
	}
	var sections []string
	var current strings.Builder
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "diff --git") && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if s := current.String(); strings.TrimSpace(s) != "" {
		sections = append(sections, s)
	}
	return sections
}

func fileName(fd *diff.FileDiff, section string) string {
	if name := trimSide(fd.NewName, "b/"); name != "" && name != devNull {
		return name
	}
	if name := trimSide(fd.OrigName, "a/"); name != "" && name != devNull {
		return name
	}
	return headerName(section)
}

func trimSide(name, prefix string) string {
	name = strings.TrimSpace(name)
	if name == devNull {
		return name
	}
	return strings.TrimPrefix(name, prefix)
}

// headerName reads the new path from a "diff --git a/x b/y" line.
func headerName(section string) string {
	line, _, _ := strings.Cut(section, "\n")
	if !strings.HasPrefix(line, "diff --git ") {
		return ""
	}
	idx := strings.LastIndex(line, " b/")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(line[idx+len(" b/"):])
}

func addedLines(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
			out = append(out, strings.TrimSuffix(line[1:], "\r"))
		}
	}
	return out
}

// scanSection is the line-oriented fallback for sections the diff reader
// rejects. The target file comes from the "+++" line or the git header, and
// added lines are collected once the file header or a hunk header was seen.
func scanSection(section string, out FileMap) {
	name := ""
	body := false
	var added []string
	flush := func() {
		if name != "" && body {
			put(out, name, added)
		}
		name, body, added = "", false, nil
	}

	for _, line := range strings.Split(section, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flush()
			name = headerName(line)
		case !body && strings.HasPrefix(line, "+++ "):
			if n := newPath(line); n != "" {
				name = n
			}
			body = true
		case strings.HasPrefix(line, "@@"):
			body = true
		case body && strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			added = append(added, strings.TrimSuffix(line[1:], "\r"))
		}
	}
	flush()
}

// newPath reads the path of a "+++ b/path" line, dropping any timestamp.
func newPath(line string) string {
	fields := strings.Fields(strings.TrimPrefix(line, "+++ "))
	if len(fields) == 0 {
		return ""
	}
	if n := trimSide(fields[0], "b/"); n != devNull {
		return n
	}
	return ""
}

func put(out FileMap, name string, added []string) {
	text := strings.Join(added, "\n")
	if prev, ok := out[name]; ok && prev != "" {
		if text == "" {
			return
		}
		text = prev + "\n" + text
	}
	out[name] = text
}
