// Package ingest turns submitted documents into searchable knowledge: a
// polling worker claims extraction jobs, pulls plain text out of text, HTML,
// or PDF content, and marks the document ready.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kalambet/tutordesk/internal/retrieval"
	"github.com/kalambet/tutordesk/internal/storage"
)

const (
	maxURLFetchSize = 5 << 20
	fetchTimeout    = 10 * time.Second
)

// JobStore abstracts the job queue and document operations the worker needs.
type JobStore interface {
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) (bool, error)
	GetKnowledgeDoc(ctx context.Context, id string) (storage.KnowledgeDoc, error)
	MarkKnowledgeReady(ctx context.Context, id, title, body, searchText string) error
	MarkKnowledgeFailed(ctx context.Context, id, errMsg string) error
}

// Worker processes knowledge_extract jobs from the SQLite job queue.
type Worker struct {
	store      JobStore
	httpClient *http.Client
	poll       time.Duration
	logger     *zap.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, httpClient *http.Client, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetchTimeout}
	}
	return &Worker{
		store:      store,
		httpClient: httpClient,
		poll:       pollInterval,
		logger:     zap.L().Named("ingest"),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", zap.Error(err))
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single knowledge_extract job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	var payload extractPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		w.fail(ctx, job, "", fmt.Errorf("parsing payload: %w", err))
		return true, nil
	}

	if err := w.extract(ctx, payload.DocID); err != nil {
		w.fail(ctx, job, payload.DocID, err)
		return true, nil
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.logger.Info("knowledge document indexed", zap.String("doc_id", payload.DocID))
	return true, nil
}

func (w *Worker) fail(ctx context.Context, job *storage.Job, docID string, cause error) {
	w.logger.Warn("job failed", zap.String("job_id", job.ID), zap.Error(cause))
	exhausted, err := w.store.FailJob(ctx, job.ID, cause.Error())
	if err != nil {
		w.logger.Error("failed to mark job as failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if exhausted && docID != "" {
		if err := w.store.MarkKnowledgeFailed(ctx, docID, cause.Error()); err != nil {
			w.logger.Error("failed to mark document as failed", zap.String("doc_id", docID), zap.Error(err))
		}
	}
}

func (w *Worker) extract(ctx context.Context, docID string) error {
	doc, err := w.store.GetKnowledgeDoc(ctx, docID)
	if err != nil {
		return fmt.Errorf("loading knowledge doc %s: %w", docID, err)
	}

	raw := doc.Raw
	if raw == "" && doc.SourceURL != "" {
		if raw, err = w.fetch(ctx, doc.SourceURL); err != nil {
			return err
		}
	}

	title, body, err := Extract(doc.ContentType, raw)
	if err != nil {
		return fmt.Errorf("extracting %s: %w", doc.ContentType, err)
	}
	if doc.Title != "" && doc.Title != doc.SourceURL {
		title = doc.Title
	}
	if title == "" {
		title = doc.Title
	}

	if err := w.store.MarkKnowledgeReady(ctx, doc.ID, title, body, retrieval.SearchText(title, body)); err != nil {
		return fmt.Errorf("marking doc %s ready: %w", doc.ID, err)
	}
	return nil
}

func (w *Worker) fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("url returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxURLFetchSize))
	if err != nil {
		return "", fmt.Errorf("reading url response: %w", err)
	}
	return string(body), nil
}
