// Package retrieval finds knowledge sources for a question by merging the
// static catalog with the ingested knowledge index.
package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/kalambet/tutordesk/internal/knowledge"
)

const (
	// RemoteLimit is how many results are requested from the index.
	RemoteLimit = 5
	// MaxSources caps the merged result.
	MaxSources = 6
)

// Searcher is a knowledge source reached over I/O.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]knowledge.Source, error)
}

// Retriever combines local catalog matches with Searcher results.
type Retriever struct {
	catalog *knowledge.Catalog
	remote  Searcher
	logger  *zap.Logger
}

// NewRetriever creates a Retriever. remote may be nil, in which case only the
// catalog is consulted.
func NewRetriever(catalog *knowledge.Catalog, remote Searcher) *Retriever {
	return &Retriever{catalog: catalog, remote: remote, logger: zap.L()}
}

// WithLogger returns a copy of r that logs to l.
func (r *Retriever) WithLogger(l *zap.Logger) *Retriever {
	cp := *r
	cp.logger = l
	return &cp
}

// Retrieve never fails: when the index is unreachable the local matches are
// returned on their own.
//
// Results are keyed by title. Local matches come first, then index results;
// an index result whose title is already present replaces that entry in place.
// The first MaxSources entries are returned.
func (r *Retriever) Retrieve(ctx context.Context, query string) []knowledge.Source {
	var local []knowledge.Source
	if r.catalog != nil {
		local = r.catalog.Search(query)
	}
	if r.remote == nil {
		return capSources(local)
	}

	remote, err := r.remote.Search(ctx, query, RemoteLimit)
	if err != nil {
		r.logger.Warn("knowledge search failed, using local catalog only",
			zap.Error(err), zap.Int("local_matches", len(local)))
		return capSources(local)
	}

	return merge(local, remote)
}

func merge(local, remote []knowledge.Source) []knowledge.Source {
	order := make([]string, 0, len(local)+len(remote))
	byTitle := make(map[string]knowledge.Source, len(local)+len(remote))
	for _, group := range [][]knowledge.Source{local, remote} {
		for _, s := range group {
			if _, seen := byTitle[s.Title]; !seen {
				order = append(order, s.Title)
			}
			byTitle[s.Title] = s
		}
	}

	out := make([]knowledge.Source, 0, min(len(order), MaxSources))
	for _, title := range order {
		if len(out) == MaxSources {
			break
		}
		out = append(out, byTitle[title])
	}
	return out
}

func capSources(s []knowledge.Source) []knowledge.Source {
	if len(s) > MaxSources {
		return s[:MaxSources]
	}
	return s
}
