// Package knowledge holds the static topic catalog that answers common
// questions without leaving the process, and the Source shape shared by every
// retrieval path.
package knowledge

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const snippetRunes = 240

// Document is one catalog entry. Documents are immutable once the catalog is built.
type Document struct {
	Title string
	Body  string
	Tags  []string
	URL   string
}

// Source is one retrieved reference used to ground an answer. Local documents
// get a synthetic "local-N" id; the knowledge index returns real ids.
type Source struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Snippet string   `json:"snippet"`
	Score   *float64 `json:"score,omitempty"`
	URL     string   `json:"url,omitempty"`
}

// Catalog is an in-memory, read-only collection of Documents.
type Catalog struct {
	docs     []Document
	haystack []string
}

// NewCatalog builds a Catalog over docs. The slice is copied.
func NewCatalog(docs []Document) *Catalog {
	c := &Catalog{
		docs:     make([]Document, len(docs)),
		haystack: make([]string, len(docs)),
	}
	for i, d := range docs {
		d.Tags = append([]string(nil), d.Tags...)
		c.docs[i] = d
		c.haystack[i] = strings.ToLower(d.Title + " " + d.Body + " " + strings.Join(d.Tags, " "))
	}
	return c
}

// Len returns the number of documents.
func (c *Catalog) Len() int { return len(c.docs) }

// Documents returns a copy of every document in catalog order.
func (c *Catalog) Documents() []Document {
	out := make([]Document, len(c.docs))
	copy(out, c.docs)
	return out
}

// Search returns, in catalog order, the sources for every document whose
// title, body, or tags contain the lowercased query. An empty query matches
// nothing.
func (c *Catalog) Search(query string) []Source {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []Source
	for i, h := range c.haystack {
		if strings.Contains(h, q) {
			out = append(out, c.source(i))
		}
	}
	return out
}

func (c *Catalog) source(i int) Source {
	d := c.docs[i]
	return Source{
		ID:      fmt.Sprintf("local-%d", i+1),
		Title:   d.Title,
		Snippet: Snippet(d.Body),
		URL:     d.URL,
	}
}

// Snippet truncates body to a fixed number of runes, marking the cut.
func Snippet(body string) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= snippetRunes {
		return body
	}
	runes := []rune(body)
	return strings.TrimSpace(string(runes[:snippetRunes])) + "…"
}
