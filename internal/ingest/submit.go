package ingest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/tutordesk/internal/storage"
)

// JobType is the job queue type for knowledge extraction.
const JobType = "knowledge_extract"

// ErrInvalidRequest is returned for submissions that can never be extracted.
var ErrInvalidRequest = errors.New("invalid ingest request")

// Request describes a document to add to the knowledge index. Either Content
// or URL is required; PDF content is base64 encoded.
type Request struct {
	Title       string   `json:"title"`
	Source      string   `json:"source"`
	ContentType string   `json:"content_type"`
	Content     string   `json:"content"`
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
}

// DocSaver stores a document together with its extraction job.
type DocSaver interface {
	SaveKnowledgeDoc(ctx context.Context, doc storage.KnowledgeDoc, job storage.Job) error
}

type extractPayload struct {
	DocID string `json:"doc_id"`
}

// Submit validates req, stores it as a pending document, and queues its extraction.
func Submit(ctx context.Context, saver DocSaver, req Request) (storage.KnowledgeDoc, error) {
	req.Content = strings.TrimSpace(req.Content)
	req.URL = strings.TrimSpace(req.URL)
	if req.Content == "" && req.URL == "" {
		return storage.KnowledgeDoc{}, fmt.Errorf("%w: content or url is required", ErrInvalidRequest)
	}
	if req.ContentType == "" {
		req.ContentType = TypeText
		if req.Content == "" {
			req.ContentType = TypeHTML
		}
	}
	switch req.ContentType {
	case TypeText, TypeHTML:
	case TypePDF:
		if req.Content == "" {
			return storage.KnowledgeDoc{}, fmt.Errorf("%w: pdf content must be uploaded", ErrInvalidRequest)
		}
		if _, err := base64.StdEncoding.DecodeString(req.Content); err != nil {
			return storage.KnowledgeDoc{}, fmt.Errorf("%w: pdf content is not base64", ErrInvalidRequest)
		}
	default:
		return storage.KnowledgeDoc{}, fmt.Errorf("%w: unsupported content type %q", ErrInvalidRequest, req.ContentType)
	}
	if req.Source == "" {
		req.Source = "api"
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = req.URL
	}

	tagsJSON := "[]"
	if len(req.Tags) > 0 {
		b, err := json.Marshal(req.Tags)
		if err != nil {
			return storage.KnowledgeDoc{}, fmt.Errorf("marshaling tags: %w", err)
		}
		tagsJSON = string(b)
	}

	doc := storage.KnowledgeDoc{
		ID:          uuid.NewString(),
		Title:       title,
		Source:      req.Source,
		SourceURL:   req.URL,
		ContentType: req.ContentType,
		Raw:         req.Content,
		Tags:        tagsJSON,
		Status:      storage.DocPending,
		CreatedAt:   time.Now().UTC(),
	}
	payload, err := json.Marshal(extractPayload{DocID: doc.ID})
	if err != nil {
		return storage.KnowledgeDoc{}, fmt.Errorf("creating job payload: %w", err)
	}
	job := storage.Job{ID: uuid.NewString(), Type: JobType, PayloadJSON: string(payload)}

	if err := saver.SaveKnowledgeDoc(ctx, doc, job); err != nil {
		return storage.KnowledgeDoc{}, fmt.Errorf("saving document: %w", err)
	}
	return doc, nil
}
