package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/babynest/internal/model"
)

// PostgresSessionRepo はログインセッションをsessionsテーブルに保存する。
// 期限切れの行はFindByIDから見えなくなり、cleanupワーカーが後で削除する。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを保存する。同じIDが既にあればエラーになる。
func (r *PostgresSessionRepo) Create(ctx context.Context, s *model.Session) error {
	if s.UserID == "" {
		return errors.New("session without user")
	}
	return r.exec(ctx, "create session",
		`INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`,
		s.ID, s.UserID, s.ExpiresAt.UTC(), s.CreatedAt.UTC(),
	)
}

// FindByID は有効なセッションを返す。存在しないか期限切れならnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	s := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return s, nil
}

// DeleteByID はログアウトしたセッションを削除する。存在しなくてもエラーにしない。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	return r.exec(ctx, "delete session", `DELETE FROM sessions WHERE id = $1`, id)
}

// DeleteByUserID は退会したユーザーの全セッションを削除する。
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return r.exec(ctx, "delete user sessions", `DELETE FROM sessions WHERE user_id = $1`, userID)
}

func (r *PostgresSessionRepo) exec(ctx context.Context, op, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

var _ SessionRepository = (*PostgresSessionRepo)(nil)
