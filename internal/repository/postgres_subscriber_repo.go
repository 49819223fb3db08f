package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/shinkan/internal/model"
)

// PostgresSubscriberRepo はPostgreSQLを使用した購読者リポジトリ。
type PostgresSubscriberRepo struct {
	db *sql.DB
}

// NewPostgresSubscriberRepo はPostgresSubscriberRepoを生成する。
func NewPostgresSubscriberRepo(db *sql.DB) *PostgresSubscriberRepo {
	return &PostgresSubscriberRepo{db: db}
}

// FindByTypeAndTargetID は種別と対象IDで購読者を検索する。見つからない場合はnilを返す。
func (r *PostgresSubscriberRepo) FindByTypeAndTargetID(ctx context.Context, subType model.SubscriberType, targetID string) (*model.Subscriber, error) {
	subscriber := &model.Subscriber{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, type, target_id FROM subscribers WHERE type = $1 AND target_id = $2`,
		subType, targetID,
	).Scan(&subscriber.ID, &subscriber.Type, &subscriber.TargetID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("購読者の検索に失敗しました: %w", err)
	}
	return subscriber, nil
}

// Create は購読者を作成する。
func (r *PostgresSubscriberRepo) Create(ctx context.Context, subscriber *model.Subscriber) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscribers (id, type, target_id) VALUES ($1, $2, $3)`,
		subscriber.ID, subscriber.Type, subscriber.TargetID,
	)
	if err != nil {
		return fmt.Errorf("購読者の作成に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SubscriberRepository = (*PostgresSubscriberRepo)(nil)
