// Package legal serves the Terms and Conditions and Privacy Policy
// documents, stored as YAML and embedded in the binary.
package legal

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed docs/*.yaml
var embedded embed.FS

// Document IDs.
const (
	Terms   = "terms"
	Privacy = "privacy"
)

// Document is one legal page.
type Document struct {
	ID          string    `yaml:"id"`
	Route       string    `yaml:"route"`
	Title       string    `yaml:"title"`
	LastUpdated string    `yaml:"last_updated"`
	Sections    []Section `yaml:"sections"`
}

// Section is a numbered heading with its text, bullet items and optional
// closing paragraph. Subsections nest one level.
type Section struct {
	Heading     string    `yaml:"heading"`
	Paragraphs  []string  `yaml:"paragraphs"`
	Items       []string  `yaml:"items"`
	Footer      string    `yaml:"footer"`
	Subsections []Section `yaml:"subsections"`
}

// Library holds the loaded documents.
type Library struct {
	docs map[string]Document
	mu   sync.RWMutex
}

var (
	defaultOnce sync.Once
	defaultLib  *Library
	defaultErr  error
)

// Default returns the library of embedded documents.
func Default() (*Library, error) {
	defaultOnce.Do(func() {
		defaultLib, defaultErr = Load(embedded)
	})
	return defaultLib, defaultErr
}

// Load reads every YAML document in fsys. Files without an id are skipped.
func Load(fsys fs.FS) (*Library, error) {
	l := &Library{docs: make(map[string]Document)}
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch path.Ext(p) {
		case ".yaml", ".yml":
			return l.loadDocument(fsys, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading legal documents: %w", err)
	}
	slog.Debug("legal documents loaded", "documents", len(l.docs))
	return l, nil
}

func (l *Library) loadDocument(fsys fs.FS, p string) error {
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", p, err)
	}
	if doc.ID == "" {
		return nil
	}
	l.mu.Lock()
	l.docs[doc.ID] = doc
	l.mu.Unlock()
	return nil
}

// Get returns a document by ID.
func (l *Library) Get(id string) (Document, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.docs[id]
	return d, ok
}

// ByRoute returns the document served at route.
func (l *Library) ByRoute(route string) (Document, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, d := range l.docs {
		if d.Route == route {
			return d, true
		}
	}
	return Document{}, false
}

// IDs returns the loaded document IDs, sorted.
func (l *Library) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.docs))
	for id := range l.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Render writes d as plain text.
func (d Document) Render(w io.Writer) error {
	var b strings.Builder
	b.WriteString(d.Title + "\n")
	if d.LastUpdated != "" {
		b.WriteString("Last Updated: " + d.LastUpdated + "\n")
	}
	for _, s := range d.Sections {
		renderSection(&b, s, "")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func renderSection(b *strings.Builder, s Section, indent string) {
	b.WriteString("\n" + indent + s.Heading + "\n")
	for _, p := range s.Paragraphs {
		b.WriteString(indent + p + "\n")
	}
	for _, item := range s.Items {
		b.WriteString(indent + "  - " + item + "\n")
	}
	for _, sub := range s.Subsections {
		renderSection(b, sub, indent+"  ")
	}
	if s.Footer != "" {
		b.WriteString(indent + s.Footer + "\n")
	}
}
