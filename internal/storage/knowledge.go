package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const knowledgeColumns = `id, title, source, source_url, content_type, raw, body, search_text, tags, status, last_error, created_at, updated_at`

// SaveKnowledgeDoc inserts doc and enqueues job in one transaction, so a
// document never exists without the job that will extract it.
func (s *Store) SaveKnowledgeDoc(ctx context.Context, doc KnowledgeDoc, job Job) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.Status == "" {
		doc.Status = DocPending
	}
	if doc.Tags == "" {
		doc.Tags = "[]"
	}
	if doc.ContentType == "" {
		doc.ContentType = "text"
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO knowledge_docs (`+knowledgeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Source, doc.SourceURL, doc.ContentType, doc.Raw, doc.Body,
		doc.SearchText, doc.Tags, doc.Status, doc.LastError, formatTime(doc.CreatedAt), formatTime(now),
	); err != nil {
		return fmt.Errorf("inserting knowledge doc %s: %w", doc.ID, err)
	}

	if err := enqueueJob(ctx, tx, job); err != nil {
		return fmt.Errorf("enqueueing job for doc %s: %w", doc.ID, err)
	}

	return tx.Commit()
}

func (s *Store) GetKnowledgeDoc(ctx context.Context, id string) (KnowledgeDoc, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+knowledgeColumns+` FROM knowledge_docs WHERE id = ?`, id)
	doc, err := scanKnowledgeDoc(row)
	if errors.Is(err, sql.ErrNoRows) {
		return KnowledgeDoc{}, ErrNotFound
	}
	return doc, err
}

// ListKnowledgeDocs returns documents newest first.
func (s *Store) ListKnowledgeDocs(ctx context.Context, limit, offset int) ([]KnowledgeDoc, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+knowledgeColumns+` FROM knowledge_docs
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectKnowledgeDocs(rows)
}

func (s *Store) DeleteKnowledgeDoc(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_docs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// MarkKnowledgeReady stores the extracted text of a document and makes it searchable.
func (s *Store) MarkKnowledgeReady(ctx context.Context, id, title, body, searchText string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE knowledge_docs
		SET title = CASE WHEN ? <> '' THEN ? ELSE title END,
		    body = ?, search_text = ?, raw = '', status = ?, last_error = '', updated_at = ?
		WHERE id = ?`,
		title, title, body, searchText, DocReady, formatTime(time.Now()), id,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (s *Store) MarkKnowledgeFailed(ctx context.Context, id, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE knowledge_docs SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		DocFailed, errMsg, formatTime(time.Now()), id,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// MatchKnowledgeDocs returns up to max ready documents whose search text
// contains at least one of terms, most recently updated first. Terms must
// already be folded the way search_text was.
func (s *Store) MatchKnowledgeDocs(ctx context.Context, terms []string, max int) ([]KnowledgeDoc, error) {
	if len(terms) == 0 || max <= 0 {
		return nil, nil
	}

	clauses := make([]string, len(terms))
	args := make([]any, 0, len(terms)+2)
	args = append(args, DocReady)
	for i, t := range terms {
		clauses[i] = `search_text LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(t)+"%")
	}
	args = append(args, max)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+knowledgeColumns+` FROM knowledge_docs
		WHERE status = ? AND (`+strings.Join(clauses, " OR ")+`)
		ORDER BY updated_at DESC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectKnowledgeDocs(rows)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKnowledgeDoc(row rowScanner) (KnowledgeDoc, error) {
	var d KnowledgeDoc
	var createdAt, updatedAt string
	err := row.Scan(&d.ID, &d.Title, &d.Source, &d.SourceURL, &d.ContentType, &d.Raw, &d.Body,
		&d.SearchText, &d.Tags, &d.Status, &d.LastError, &createdAt, &updatedAt)
	if err != nil {
		return KnowledgeDoc{}, err
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return KnowledgeDoc{}, fmt.Errorf("parsing created_at for doc %s: %w", d.ID, err)
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return KnowledgeDoc{}, fmt.Errorf("parsing updated_at for doc %s: %w", d.ID, err)
	}
	return d, nil
}

func collectKnowledgeDocs(rows *sql.Rows) ([]KnowledgeDoc, error) {
	var out []KnowledgeDoc
	for rows.Next() {
		d, err := scanKnowledgeDoc(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
