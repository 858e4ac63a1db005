package session

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

func (r *PostgresRepo) Save(ctx context.Context, s *Session) error {
	query := `INSERT INTO sessions (user_id, name, system_prompt)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, s.UserID, s.Name, s.SystemPrompt).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string, userID int64) (*Session, error) {
	s := &Session{}
	var prompt sql.NullString
	query := `SELECT id, user_id, name, system_prompt, created_at, updated_at
		FROM sessions WHERE id = $1 AND user_id = $2`
	err := r.db.QueryRowContext(ctx, query, id, userID).
		Scan(&s.ID, &s.UserID, &s.Name, &prompt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.SystemPrompt = prompt.String
	return s, nil
}

func (r *PostgresRepo) List(ctx context.Context, userID int64) ([]Session, error) {
	query := `SELECT id, user_id, name, system_prompt, created_at, updated_at
		FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var prompt sql.NullString
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &prompt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.SystemPrompt = prompt.String
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *PostgresRepo) UpdatePrompt(ctx context.Context, id string, userID int64, prompt string) error {
	query := `UPDATE sessions SET system_prompt = NULLIF($1, ''), updated_at = NOW()
		WHERE id = $2 AND user_id = $3`
	res, err := r.db.ExecContext(ctx, query, prompt, id, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string, userID int64) error {
	query := `DELETE FROM sessions WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
