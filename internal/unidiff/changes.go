package unidiff

import (
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/dshills/prsignal/internal/model"
)

// Changes derives the changed-file list from diff text, counting added and
// removed lines per file. It is used when the caller supplies a diff without
// a file list. Sections the diff reader rejects are skipped.
func Changes(text string) []model.ChangedFile {
	var out []model.ChangedFile
	index := map[string]int{}

	for _, sec := range splitSections(text) {
		files, err := diff.NewMultiFileDiffReader(strings.NewReader(sec)).ReadAllFiles()
		if err != nil {
			continue
		}
		for _, fd := range files {
			name := fileName(fd, sec)
			if name == "" {
				continue
			}
			cf := model.ChangedFile{Filename: name, Status: status(fd)}
			// Hunk bodies hold no file headers, so a "---" line is a
			// removed line starting with "--".
			for _, h := range fd.Hunks {
				for _, line := range strings.Split(string(h.Body), "\n") {
					switch {
					case strings.HasPrefix(line, "+"):
						cf.Additions++
					case strings.HasPrefix(line, "-"):
						cf.Deletions++
					}
				}
			}

			if i, ok := index[name]; ok {
				out[i].Additions += cf.Additions
				out[i].Deletions += cf.Deletions
				continue
			}
			index[name] = len(out)
			out = append(out, cf)
		}
	}
	return out
}

func status(fd *diff.FileDiff) model.FileStatus {
	switch {
	case strings.TrimSpace(fd.OrigName) == devNull:
		return model.StatusAdded
	case strings.TrimSpace(fd.NewName) == devNull:
		return model.StatusRemoved
	}
	for _, ext := range fd.Extended {
		switch {
		case strings.HasPrefix(ext, "new file mode"):
			return model.StatusAdded
		case strings.HasPrefix(ext, "deleted file mode"):
			return model.StatusRemoved
		case strings.HasPrefix(ext, "rename from"):
			return model.StatusRenamed
		}
	}
	return model.StatusModified
}
