package document

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, doc *Document) error {
	query := `INSERT INTO documents (session_id, user_id, kind, name, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query,
		doc.SessionID, doc.UserID, doc.Kind, doc.Name, doc.Status).
		Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string, userID int64) (*Document, error) {
	doc := &Document{}
	var errMsg sql.NullString
	query := `SELECT id, session_id, user_id, kind, name, status, chunk_count, error_message, created_at, updated_at
		FROM documents WHERE id = $1 AND user_id = $2`
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&doc.ID, &doc.SessionID, &doc.UserID, &doc.Kind, &doc.Name,
		&doc.Status, &doc.ChunkCount, &errMsg, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.ErrorMessage = errMsg.String
	return doc, nil
}

func (r *PostgresRepo) ListBySession(ctx context.Context, sessionID string, userID int64) ([]Document, error) {
	query := `SELECT id, session_id, user_id, kind, name, status, chunk_count, error_message, created_at, updated_at
		FROM documents WHERE session_id = $1 AND user_id = $2 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, sessionID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var errMsg sql.NullString
		if err := rows.Scan(&doc.ID, &doc.SessionID, &doc.UserID, &doc.Kind, &doc.Name,
			&doc.Status, &doc.ChunkCount, &errMsg, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		doc.ErrorMessage = errMsg.String
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) MarkProcessing(ctx context.Context, documentID string) error {
	query := `UPDATE documents SET status = 'processing', updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, documentID)
	return err
}

func (r *PostgresRepo) MarkCompleted(ctx context.Context, documentID string, chunkCount int) error {
	query := `UPDATE documents SET status = 'completed', chunk_count = $1, error_message = NULL, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, chunkCount, documentID)
	return err
}

func (r *PostgresRepo) MarkFailed(ctx context.Context, documentID, reason string) error {
	query := `UPDATE documents SET status = 'failed', error_message = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, reason, documentID)
	return err
}
