package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kalambet/tutordesk/internal/knowledge"
	"github.com/kalambet/tutordesk/internal/storage"
	"github.com/kalambet/tutordesk/internal/textnorm"
)

const (
	minTermRunes = 3
	// candidateFactor bounds how many matching rows are scored per result slot.
	candidateFactor = 8
)

var stopwords = map[string]bool{
	"que": true, "para": true, "com": true, "uma": true, "por": true,
	"dos": true, "das": true, "nos": true, "nas": true, "sao": true,
	"the": true, "and": true,
}

// DocumentIndex is the storage behind IndexSearcher.
type DocumentIndex interface {
	MatchKnowledgeDocs(ctx context.Context, terms []string, max int) ([]storage.KnowledgeDoc, error)
}

// IndexSearcher ranks ingested documents by the share of query terms they contain.
type IndexSearcher struct {
	index DocumentIndex
}

func NewIndexSearcher(index DocumentIndex) *IndexSearcher {
	return &IndexSearcher{index: index}
}

// Search returns up to limit sources, best score first.
func (s *IndexSearcher) Search(ctx context.Context, query string, limit int) ([]knowledge.Source, error) {
	terms := Terms(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	docs, err := s.index.MatchKnowledgeDocs(ctx, terms, limit*candidateFactor)
	if err != nil {
		return nil, fmt.Errorf("matching knowledge docs: %w", err)
	}

	type scored struct {
		doc   storage.KnowledgeDoc
		score float64
	}
	ranked := make([]scored, 0, len(docs))
	for _, d := range docs {
		hits := 0
		for _, t := range terms {
			if strings.Contains(d.SearchText, t) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		ranked = append(ranked, scored{d, float64(hits) / float64(len(terms))})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]knowledge.Source, len(ranked))
	for i, r := range ranked {
		score := r.score
		out[i] = knowledge.Source{
			ID:      r.doc.ID,
			Title:   r.doc.Title,
			Snippet: knowledge.Snippet(r.doc.Body),
			Score:   &score,
			URL:     r.doc.SourceURL,
		}
	}
	return out, nil
}

// Terms splits query into distinct folded words of at least three runes,
// dropping common stopwords.
func Terms(query string) []string {
	words := strings.FieldsFunc(textnorm.Fold(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	var out []string
	for _, w := range words {
		if utf8.RuneCountInString(w) < minTermRunes || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// SearchText is the folded text stored alongside a document for matching.
func SearchText(title, body string) string {
	return textnorm.Fold(title + "\n" + body)
}
