package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/shinkan/internal/model"
)

// PostgresMetaRepo はPostgreSQLを使用したbot_metaリポジトリ。
type PostgresMetaRepo struct {
	db *sql.DB
}

// NewPostgresMetaRepo はPostgresMetaRepoを生成する。
func NewPostgresMetaRepo(db *sql.DB) *PostgresMetaRepo {
	return &PostgresMetaRepo{db: db}
}

// Get は指定キーの値を取得する。見つからない場合は空文字を返す。
func (r *PostgresMetaRepo) Get(ctx context.Context, key model.MetaKey) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM bot_meta WHERE key = $1`, string(key),
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("メタデータの取得に失敗しました: %w", err)
	}
	return value, nil
}

// Set は指定キーの値を冪等に保存する。
func (r *PostgresMetaRepo) Set(ctx context.Context, key model.MetaKey, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bot_meta (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now()`,
		string(key), value,
	)
	if err != nil {
		return fmt.Errorf("メタデータの保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ MetaRepository = (*PostgresMetaRepo)(nil)
