package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/shinkan/internal/model"
)

// PostgresItemRepo はPostgreSQLを使用したフィードアイテムリポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// FindLatestByFeedID はフィードの最新アイテム（published最大の行）を取得する。
// publishedが同値の場合はcreated_atが新しい行を優先する。見つからない場合はnilを返す。
func (r *PostgresItemRepo) FindLatestByFeedID(ctx context.Context, feedID string) (*model.FeedItem, error) {
	item := &model.FeedItem{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, feed_id, description, published, created_at
		 FROM feed_items
		 WHERE feed_id = $1
		 ORDER BY published DESC, created_at DESC
		 LIMIT 1`,
		feedID,
	).Scan(&item.ID, &item.FeedID, &item.Description, &item.Published, &item.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("最新アイテムの取得に失敗しました: %w", err)
	}
	return item, nil
}

// Create はアイテムを作成する。
func (r *PostgresItemRepo) Create(ctx context.Context, item *model.FeedItem) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO feed_items (id, feed_id, description, published, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		item.ID, item.FeedID, item.Description, item.Published, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("アイテムの作成に失敗しました: %w", err)
	}
	return nil
}

// ListByFeedID はフィードのアイテムをpublished降順で返す。
func (r *PostgresItemRepo) ListByFeedID(ctx context.Context, feedID string, limit int) ([]*model.FeedItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, feed_id, description, published, created_at
		 FROM feed_items
		 WHERE feed_id = $1
		 ORDER BY published DESC, created_at DESC
		 LIMIT $2`,
		feedID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("アイテム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []*model.FeedItem
	for rows.Next() {
		item := &model.FeedItem{}
		if err := rows.Scan(&item.ID, &item.FeedID, &item.Description, &item.Published, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("アイテムの読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アイテム一覧の走査に失敗しました: %w", err)
	}
	return items, nil
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
