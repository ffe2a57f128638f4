// Package corpus loads the plain-text meeting corpus from disk.
//
// A corpus is two filesystem subtrees: one holding raw transcripts and one
// holding their summaries. Documents are returned in sorted path order so
// downstream id assignment is reproducible across rebuilds.
package corpus

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Kind tags a document by its originating subtree.
type Kind string

const (
	KindTranscript Kind = "transcript"
	KindSummary    Kind = "summary"
)

// maxFileSize is the largest document we'll load (8 MiB). Transcripts of
// multi-hour meetings stay well under this.
const maxFileSize = 8 << 20

// Document is a single corpus file with its content loaded.
type Document struct {
	// Path is the absolute path of the source file.
	Path string

	// Kind records whether the file came from the transcripts or the
	// summaries tree.
	Kind Kind

	// Text is the full file content.
	Text string

	// ModTime is the file modification time, used as the document
	// timestamp for date-range filtering at query time.
	ModTime time.Time
}

// Load reads every .txt document under the transcripts and summaries
// directories. A missing directory is skipped silently; an unreadable file
// is an error. Results are ordered by (kind, path): all transcripts first,
// then all summaries, each sorted by path.
func Load(transcriptsDir, summariesDir string) ([]Document, error) {
	var docs []Document

	transcripts, err := loadTree(transcriptsDir, KindTranscript)
	if err != nil {
		return nil, err
	}
	docs = append(docs, transcripts...)

	summaries, err := loadTree(summariesDir, KindSummary)
	if err != nil {
		return nil, err
	}
	docs = append(docs, summaries...)

	return docs, nil
}

func loadTree(root string, kind Kind) ([]Document, error) {
	if root == "" {
		return nil, nil
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(absRoot); os.IsNotExist(err) {
		return nil, nil
	}

	var paths []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries, keep walking
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(path), ".txt") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() == 0 || info.Size() > maxFileSize {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", absRoot, err)
	}

	sort.Strings(paths)

	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		docs = append(docs, Document{
			Path:    p,
			Kind:    kind,
			Text:    string(data),
			ModTime: info.ModTime(),
		})
	}
	return docs, nil
}
