package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/shinkan/internal/model"
)

// PostgresFeedRepo はPostgreSQLを使用したフィードリポジトリ。
type PostgresFeedRepo struct {
	db *sql.DB
}

// NewPostgresFeedRepo はPostgresFeedRepoを生成する。
func NewPostgresFeedRepo(db *sql.DB) *PostgresFeedRepo {
	return &PostgresFeedRepo{db: db}
}

const feedColumns = `id, platform_id, source_id, items_id, name, description,
	        source_url, cover_url, tags, created_at, updated_at`

// scanFeed は1行をmodel.Feedに読み取る。
func scanFeed(row interface{ Scan(...any) error }) (*model.Feed, error) {
	feed := &model.Feed{}
	var description, coverURL, tags sql.NullString

	err := row.Scan(
		&feed.ID, &feed.PlatformID, &feed.SourceID, &feed.ItemsID,
		&feed.Name, &description, &feed.SourceURL, &coverURL, &tags,
		&feed.CreatedAt, &feed.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	feed.Description = nullStringValue(description)
	feed.CoverURL = nullStringValue(coverURL)
	feed.Tags = nullStringValue(tags)
	return feed, nil
}

// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindByID(ctx context.Context, id string) (*model.Feed, error) {
	feed, err := scanFeed(r.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	return feed, nil
}

// FindByPlatformAndSourceID はプラットフォームIDとソースIDでフィードを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindByPlatformAndSourceID(ctx context.Context, platformID, sourceID string) (*model.Feed, error) {
	feed, err := scanFeed(r.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE platform_id = $1 AND source_id = $2`,
		platformID, sourceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ソースIDによるフィードの検索に失敗しました: %w", err)
	}
	return feed, nil
}

// Create はフィードを作成する。
func (r *PostgresFeedRepo) Create(ctx context.Context, feed *model.Feed) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO feeds (id, platform_id, source_id, items_id, name, description,
		                    source_url, cover_url, tags, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		feed.ID, feed.PlatformID, feed.SourceID, feed.ItemsID,
		feed.Name, feed.Description, feed.SourceURL, feed.CoverURL, feed.Tags,
		feed.CreatedAt, feed.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("フィードの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はフィードのメタデータを更新する。
func (r *PostgresFeedRepo) Update(ctx context.Context, feed *model.Feed) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET
		    name = $2, description = $3, cover_url = $4, tags = $5, updated_at = now()
		 WHERE id = $1`,
		feed.ID, feed.Name, feed.Description, feed.CoverURL, feed.Tags,
	)
	if err != nil {
		return fmt.Errorf("フィードの更新に失敗しました: %w", err)
	}
	return nil
}

// ListAll は全フィードを返す。
func (r *PostgresFeedRepo) ListAll(ctx context.Context) ([]*model.Feed, error) {
	return r.list(ctx, `SELECT `+feedColumns+` FROM feeds ORDER BY created_at ASC`)
}

// ListWithSubscribers は購読者が1人以上存在するフィードを返す。
func (r *PostgresFeedRepo) ListWithSubscribers(ctx context.Context) ([]*model.Feed, error) {
	return r.list(ctx,
		`SELECT DISTINCT f.id, f.platform_id, f.source_id, f.items_id, f.name, f.description,
		        f.source_url, f.cover_url, f.tags, f.created_at, f.updated_at
		 FROM feeds f
		 INNER JOIN subscriptions s ON f.id = s.feed_id
		 ORDER BY f.created_at ASC`)
}

func (r *PostgresFeedRepo) list(ctx context.Context, query string) ([]*model.Feed, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("フィード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var feeds []*model.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("フィードの読み取りに失敗しました: %w", err)
		}
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィード一覧の走査に失敗しました: %w", err)
	}
	return feeds, nil
}

// Delete は指定IDのフィードを削除する。
func (r *PostgresFeedRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM feeds WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("フィードの削除に失敗しました: %w", err)
	}
	return nil
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ FeedRepository = (*PostgresFeedRepo)(nil)
