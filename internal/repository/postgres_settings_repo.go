package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/shinkan/internal/model"
)

// PostgresSettingsRepo はPostgreSQLを使用したギルド設定リポジトリ。
// 設定はJSONBカラムに保存する。
type PostgresSettingsRepo struct {
	db *sql.DB
}

// NewPostgresSettingsRepo はPostgresSettingsRepoを生成する。
func NewPostgresSettingsRepo(db *sql.DB) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{db: db}
}

// Find は指定ギルドの設定を取得する。見つからない場合はnilを返す。
func (r *PostgresSettingsRepo) Find(ctx context.Context, guildID int64) (*model.ServerSettings, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT settings FROM server_settings WHERE guild_id = $1`, guildID,
	).Scan(&raw)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ギルド設定の取得に失敗しました: %w", err)
	}

	settings := &model.ServerSettings{}
	if err := json.Unmarshal(raw, settings); err != nil {
		return nil, fmt.Errorf("ギルド設定のパースに失敗しました: %w", err)
	}
	return settings, nil
}

// Upsert はギルド設定を冪等に保存する。
func (r *PostgresSettingsRepo) Upsert(ctx context.Context, guildID int64, settings *model.ServerSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("ギルド設定のシリアライズに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO server_settings (guild_id, settings, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (guild_id) DO UPDATE SET settings = $2, updated_at = now()`,
		guildID, raw,
	)
	if err != nil {
		return fmt.Errorf("ギルド設定の保存に失敗しました: %w", err)
	}
	return nil
}

// ListVoiceDisabledGuilds はボイストラッキングが明示的に無効化されたギルドIDの一覧を返す。
func (r *PostgresSettingsRepo) ListVoiceDisabledGuilds(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT guild_id FROM server_settings
		 WHERE settings -> 'voice' ->> 'enabled' = 'false'`,
	)
	if err != nil {
		return nil, fmt.Errorf("無効化ギルド一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var guilds []int64
	for rows.Next() {
		var guildID int64
		if err := rows.Scan(&guildID); err != nil {
			return nil, fmt.Errorf("ギルドIDの読み取りに失敗しました: %w", err)
		}
		guilds = append(guilds, guildID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("無効化ギルド一覧の走査に失敗しました: %w", err)
	}
	return guilds, nil
}

// compile-time interface check
var _ SettingsRepository = (*PostgresSettingsRepo)(nil)
