package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/babynest/internal/model"
)

const babyColumns = `id, name, gender, color, photo_url, birth_date, created_at, updated_at`

// PostgresBabyRepo はPostgreSQLを使用した赤ちゃんリポジトリ。
type PostgresBabyRepo struct {
	db *sql.DB
}

// NewPostgresBabyRepo はPostgresBabyRepoを生成する。
func NewPostgresBabyRepo(db *sql.DB) *PostgresBabyRepo {
	return &PostgresBabyRepo{db: db}
}

func scanBaby(row interface{ Scan(...any) error }) (*model.Baby, error) {
	b := &model.Baby{}
	var gender string
	if err := row.Scan(&b.ID, &b.Name, &gender, &b.Color, &b.PhotoURL, &b.BirthDate, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Gender = model.Gender(gender)
	b.BirthDate = b.BirthDate.UTC()
	return b, nil
}

// List は全件を作成日時の昇順で返す。
func (r *PostgresBabyRepo) List(ctx context.Context) ([]*model.Baby, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+babyColumns+` FROM babies ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list babies: %w", err)
	}
	defer rows.Close()

	babies := []*model.Baby{}
	for rows.Next() {
		b, err := scanBaby(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan baby: %w", err)
		}
		babies = append(babies, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate babies: %w", err)
	}
	return babies, nil
}

// FindByID は指定IDの赤ちゃんを取得する。見つからない場合はnilを返す。
func (r *PostgresBabyRepo) FindByID(ctx context.Context, id string) (*model.Baby, error) {
	b, err := scanBaby(r.db.QueryRowContext(ctx,
		`SELECT `+babyColumns+` FROM babies WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find baby: %w", err)
	}
	return b, nil
}

// Create は赤ちゃんを作成する。
func (r *PostgresBabyRepo) Create(ctx context.Context, baby *model.Baby) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO babies (id, name, gender, color, photo_url, birth_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		baby.ID, baby.Name, string(baby.Gender), baby.Color, baby.PhotoURL, baby.BirthDate, baby.CreatedAt, baby.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create baby: %w", err)
	}
	return nil
}

// Update はpatchの非nilフィールドのみを更新する。見つからない場合はnilを返す。
func (r *PostgresBabyRepo) Update(ctx context.Context, id string, patch model.BabyPatch) (*model.Baby, error) {
	var gender sql.NullString
	if patch.Gender != nil {
		gender = sql.NullString{String: string(*patch.Gender), Valid: true}
	}
	var birth sql.NullTime
	if patch.BirthDate != nil {
		birth = sql.NullTime{Time: *patch.BirthDate, Valid: true}
	}

	b, err := scanBaby(r.db.QueryRowContext(ctx,
		`UPDATE babies SET
		   name = COALESCE($2, name),
		   gender = COALESCE($3, gender),
		   color = COALESCE($4, color),
		   photo_url = COALESCE($5, photo_url),
		   birth_date = COALESCE($6, birth_date),
		   updated_at = now()
		 WHERE id = $1
		 RETURNING `+babyColumns,
		id, nullString(patch.Name), gender, nullString(patch.Color), nullString(patch.PhotoURL), birth,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update baby: %w", err)
	}
	return b, nil
}

// Delete は指定IDの赤ちゃんを削除する。削除した場合はtrueを返す。
func (r *PostgresBabyRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM babies WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete baby: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ BabyRepository = (*PostgresBabyRepo)(nil)
