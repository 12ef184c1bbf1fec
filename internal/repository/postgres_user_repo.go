package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/ideaboard/internal/model"
	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLのUNIQUE制約違反のエラーコード。
const uniqueViolation = "23505"

// userColumns はusersテーブルのSELECT対象カラム。
const userColumns = `id, email, name, password_hash, image, avatar_data, avatar_mime,
	provider, provider_id, role, last_login, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。email重複時はErrDuplicateEmailを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, image, provider, provider_id, role, last_login, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Image,
		user.Provider, user.ProviderID, user.Role, user.LastLogin,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to insert user: %w", ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpsertByEmail はemailをキーにユーザーを作成または更新する。
// 既存行の更新ではlast_login/provider/provider_id/imageのみを書き換え、
// id・email・password_hash・role・created_atは維持する。
// 表示名は既存値があればそれを優先する。
func (r *PostgresUserRepo) UpsertByEmail(ctx context.Context, user *model.User) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email, name, image, provider, provider_id, role, last_login, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (email) DO UPDATE SET
			last_login  = EXCLUDED.last_login,
			provider    = EXCLUDED.provider,
			provider_id = EXCLUDED.provider_id,
			image       = COALESCE(EXCLUDED.image, users.image),
			name        = COALESCE(users.name, EXCLUDED.name),
			updated_at  = EXCLUDED.updated_at
		 RETURNING `+userColumns,
		user.ID, user.Email, user.Name, user.Image,
		user.Provider, user.ProviderID, user.Role, user.LastLogin,
		user.CreatedAt, user.UpdatedAt,
	)
	upserted, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return upserted, nil
}

// UpdateAvatar は取得済みアバター画像のバイト列とMIMEを保存する。
func (r *PostgresUserRepo) UpdateAvatar(ctx context.Context, id string, data []byte, mimeType string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET avatar_data = $2, avatar_mime = $3, updated_at = now() WHERE id = $1`,
		id, data, mimeType,
	)
	if err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// rowScanner はsql.Rowとsql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser は1行をmodel.Userにマッピングする。
// NULL許容カラムはsql.Null*で受けてポインタに変換する。
func scanUser(row rowScanner) (*model.User, error) {
	var (
		user       model.User
		name       sql.NullString
		hash       sql.NullString
		image      sql.NullString
		avatarMime sql.NullString
		providerID sql.NullString
		lastLogin  sql.NullTime
	)

	err := row.Scan(
		&user.ID, &user.Email, &name, &hash, &image,
		&user.AvatarData, &avatarMime,
		&user.Provider, &providerID, &user.Role, &lastLogin,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if name.Valid {
		user.Name = &name.String
	}
	if hash.Valid {
		user.PasswordHash = &hash.String
	}
	if image.Valid {
		user.Image = &image.String
	}
	if avatarMime.Valid {
		user.AvatarMime = avatarMime.String
	}
	if providerID.Valid {
		user.ProviderID = &providerID.String
	}
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}

	return &user, nil
}

// isUniqueViolation はエラーがUNIQUE制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
