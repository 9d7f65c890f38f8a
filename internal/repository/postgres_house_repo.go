package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/babynest/internal/model"
)

// PostgresHouseRepo はPostgreSQLを使用した家庭リポジトリ。
type PostgresHouseRepo struct {
	db *sql.DB
}

// NewPostgresHouseRepo はPostgresHouseRepoを生成する。
func NewPostgresHouseRepo(db *sql.DB) *PostgresHouseRepo {
	return &PostgresHouseRepo{db: db}
}

// List は全件を作成日時の昇順で返す。
func (r *PostgresHouseRepo) List(ctx context.Context) ([]*model.House, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM houses ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list houses: %w", err)
	}
	defer rows.Close()

	houses := []*model.House{}
	for rows.Next() {
		h := &model.House{}
		if err := rows.Scan(&h.ID, &h.Name, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan house: %w", err)
		}
		houses = append(houses, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate houses: %w", err)
	}
	return houses, nil
}

// FindByID は指定IDの家庭を取得する。見つからない場合はnilを返す。
func (r *PostgresHouseRepo) FindByID(ctx context.Context, id string) (*model.House, error) {
	h := &model.House{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM houses WHERE id = $1`,
		id,
	).Scan(&h.ID, &h.Name, &h.CreatedAt, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find house: %w", err)
	}
	return h, nil
}

// Create は家庭を作成する。
func (r *PostgresHouseRepo) Create(ctx context.Context, house *model.House) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO houses (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		house.ID, house.Name, house.CreatedAt, house.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create house: %w", err)
	}
	return nil
}

// Update はpatchの非nilフィールドのみを更新する。見つからない場合はnilを返す。
func (r *PostgresHouseRepo) Update(ctx context.Context, id string, patch model.HousePatch) (*model.House, error) {
	h := &model.House{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE houses SET name = COALESCE($2, name), updated_at = now()
		 WHERE id = $1
		 RETURNING id, name, created_at, updated_at`,
		id, nullString(patch.Name),
	).Scan(&h.ID, &h.Name, &h.CreatedAt, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update house: %w", err)
	}
	return h, nil
}

// Delete は指定IDの家庭を削除する。削除した場合はtrueを返す。
func (r *PostgresHouseRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM houses WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete house: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ HouseRepository = (*PostgresHouseRepo)(nil)
