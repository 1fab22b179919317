// Package docload hands a fetched document to the chunker as ordered text
// blocks, optionally through a transient text file.
package docload

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"webqa/internal/domain"
)

// Loaded is the text of one logical document as ordered blocks.
type Loaded struct {
	ID     string
	URL    string
	Path   string
	blocks []string
}

func (l *Loaded) DocumentID() string { return l.ID }

func (l *Loaded) SourceURL() string { return l.URL }

// Blocks returns a copy of the loaded blocks.
func (l *Loaded) Blocks() []string { return append([]string(nil), l.blocks...) }

// Direct uses the fetched text as is.
type Direct struct{}

// Load returns the document's paragraphs.
func (Direct) Load(ctx context.Context, doc domain.Document) (domain.TextBlocks, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Loaded{ID: doc.ID, URL: doc.URL, blocks: doc.Blocks()}, nil
}

// File writes the document to a temporary text file in Dir and reads it back.
// The file is removed once loaded.
type File struct {
	Dir string
}

// Load saves doc under f.Dir and reloads it with LoadFile.
func (f File) Load(ctx context.Context, doc domain.Document) (domain.TextBlocks, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := f.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create load dir: %w", err)
	}
	path, err := WriteText(dir, doc)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	loaded, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	loaded.ID = doc.ID
	loaded.URL = doc.URL
	return loaded, nil
}

// WriteText stores the document text in a new file under dir.
func WriteText(dir string, doc domain.Document) (string, error) {
	fh, err := os.CreateTemp(dir, "page-"+doc.ID+"-*.txt")
	if err != nil {
		return "", fmt.Errorf("create document file: %w", err)
	}
	if _, err := fh.WriteString(doc.Text); err != nil {
		fh.Close()
		os.Remove(fh.Name())
		return "", fmt.Errorf("write document file: %w", err)
	}
	if err := fh.Close(); err != nil {
		os.Remove(fh.Name())
		return "", fmt.Errorf("close document file: %w", err)
	}
	return fh.Name(), nil
}

// LoadFile reads a text file and returns its blank-line separated blocks in
// order.
func LoadFile(path string) (*Loaded, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document file: %w", err)
	}
	defer fh.Close()

	var (
		blocks []string
		cur    []string
	)
	flush := func() {
		if len(cur) > 0 {
			blocks = append(blocks, strings.Join(strings.Fields(strings.Join(cur, " ")), " "))
			cur = cur[:0]
		}
	}
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read document file: %w", err)
	}
	flush()

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &Loaded{ID: id, Path: path, blocks: blocks}, nil
}
