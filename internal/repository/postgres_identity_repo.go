package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/babynest/internal/model"
)

const identityColumns = `id, user_id, provider, provider_user_id, secret_hash, created_at`

// PostgresIdentityRepo はidentitiesテーブルを扱う。
// Googleログインはプロバイダのsubjectを、パスワードログインは小文字化したメールアドレスを
// provider_user_idに持ち、後者だけがsecret_hashにbcryptハッシュを保持する。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

func scanIdentity(row interface{ Scan(...any) error }) (*model.Identity, error) {
	ident := &model.Identity{}
	var secret sql.NullString
	if err := row.Scan(&ident.ID, &ident.UserID, &ident.Provider, &ident.ProviderUserID, &secret, &ident.CreatedAt); err != nil {
		return nil, err
	}
	ident.SecretHash = secret.String
	return ident, nil
}

// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
// パスワードログインではメールアドレスの大文字小文字を区別しない。
// 見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	if provider == model.ProviderPassword {
		providerUserID = strings.ToLower(strings.TrimSpace(providerUserID))
	}

	ident, err := scanIdentity(r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s identity: %w", provider, err)
	}

	// ハッシュの無いパスワードidentityではログインさせない
	if ident.Provider == model.ProviderPassword && ident.SecretHash == "" {
		return nil, fmt.Errorf("password identity %s has no secret hash", ident.ID)
	}
	return ident, nil
}

var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
