package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/shinkan/internal/model"
)

// PostgresSubscriptionRepo はPostgreSQLを使用した購読リポジトリ。
type PostgresSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
func NewPostgresSubscriptionRepo(db *sql.DB) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{db: db}
}

// Create は購読を作成する。
// 同一の(feed_id, subscriber_id)が既に存在する場合は一意制約違反をそのまま返す。
// 冪等性の判定は呼び出し側で行う。
func (r *PostgresSubscriptionRepo) Create(ctx context.Context, subscription *model.Subscription) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, feed_id, subscriber_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		subscription.ID, subscription.FeedID, subscription.SubscriberID, subscription.CreatedAt,
	)
	return err
}

// Delete はフィードIDと購読者IDで購読を削除する。削除した場合はtrueを返す。
func (r *PostgresSubscriptionRepo) Delete(ctx context.Context, feedID, subscriberID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE feed_id = $1 AND subscriber_id = $2`,
		feedID, subscriberID,
	)
	if err != nil {
		return false, fmt.Errorf("購読の削除に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("購読の削除結果の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// CountByFeedID はフィードの購読者数を返す。
func (r *PostgresSubscriptionRepo) CountByFeedID(ctx context.Context, feedID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE feed_id = $1`, feedID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("購読者数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// CountBySubscriberID は購読者の購読数を返す。
func (r *PostgresSubscriptionRepo) CountBySubscriberID(ctx context.Context, subscriberID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = $1`, subscriberID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("購読数の取得に失敗しました: %w", err)
	}
	return count, nil
}

const feedWithLatestQuery = `
	SELECT f.id, f.platform_id, f.source_id, f.items_id, f.name, f.description,
	       f.source_url, f.cover_url, f.tags, f.created_at, f.updated_at,
	       li.id, li.description, li.published, li.created_at
	FROM subscriptions s
	INNER JOIN feeds f ON f.id = s.feed_id
	LEFT JOIN LATERAL (
	    SELECT id, description, published, created_at
	    FROM feed_items
	    WHERE feed_id = f.id
	    ORDER BY published DESC, created_at DESC
	    LIMIT 1
	) li ON true
	WHERE s.subscriber_id = $1`

// ListFeedsWithLatest は購読者の購読フィード一覧を最新アイテム付きで返す。
// フィード名の昇順でoffset/limitページネーションを使用する。
func (r *PostgresSubscriptionRepo) ListFeedsWithLatest(ctx context.Context, subscriberID string, offset, limit int) ([]model.FeedWithLatest, error) {
	rows, err := r.db.QueryContext(ctx,
		feedWithLatestQuery+` ORDER BY f.name ASC OFFSET $2 LIMIT $3`,
		subscriberID, offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("購読フィード一覧の取得に失敗しました: %w", err)
	}
	return scanFeedsWithLatest(rows)
}

// SearchFeedsWithLatest は購読者の購読フィードを名前の部分一致（大文字小文字無視）で検索する。
func (r *PostgresSubscriptionRepo) SearchFeedsWithLatest(ctx context.Context, subscriberID, query string, limit int) ([]model.FeedWithLatest, error) {
	rows, err := r.db.QueryContext(ctx,
		feedWithLatestQuery+` AND f.name ILIKE '%' || $2 || '%' ORDER BY f.name ASC LIMIT $3`,
		subscriberID, query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("購読フィードの検索に失敗しました: %w", err)
	}
	return scanFeedsWithLatest(rows)
}

// scanFeedsWithLatest はフィードと最新アイテムのJOIN結果を読み取る。
func scanFeedsWithLatest(rows *sql.Rows) ([]model.FeedWithLatest, error) {
	defer rows.Close()

	var feeds []model.FeedWithLatest
	for rows.Next() {
		var fw model.FeedWithLatest
		var description, coverURL, tags sql.NullString
		var itemID, itemDescription sql.NullString
		var itemPublished, itemCreatedAt sql.NullTime

		if err := rows.Scan(
			&fw.ID, &fw.PlatformID, &fw.SourceID, &fw.ItemsID,
			&fw.Name, &description, &fw.SourceURL, &coverURL, &tags,
			&fw.CreatedAt, &fw.UpdatedAt,
			&itemID, &itemDescription, &itemPublished, &itemCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("購読フィードの読み取りに失敗しました: %w", err)
		}

		fw.Description = nullStringValue(description)
		fw.CoverURL = nullStringValue(coverURL)
		fw.Tags = nullStringValue(tags)

		if itemID.Valid {
			fw.Latest = &model.FeedItem{
				ID:          itemID.String,
				FeedID:      fw.ID,
				Description: nullStringValue(itemDescription),
				Published:   itemPublished.Time,
				CreatedAt:   itemCreatedAt.Time,
			}
		}
		feeds = append(feeds, fw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("購読フィード一覧の走査に失敗しました: %w", err)
	}
	return feeds, nil
}

// ListSubscribersByFeedID はフィードの全購読者を返す。
func (r *PostgresSubscriptionRepo) ListSubscribersByFeedID(ctx context.Context, feedID string) ([]*model.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT sub.id, sub.type, sub.target_id
		 FROM subscriptions s
		 INNER JOIN subscribers sub ON sub.id = s.subscriber_id
		 WHERE s.feed_id = $1
		 ORDER BY sub.target_id ASC`,
		feedID,
	)
	if err != nil {
		return nil, fmt.Errorf("フィード購読者の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var subscribers []*model.Subscriber
	for rows.Next() {
		sub := &model.Subscriber{}
		if err := rows.Scan(&sub.ID, &sub.Type, &sub.TargetID); err != nil {
			return nil, fmt.Errorf("購読者の読み取りに失敗しました: %w", err)
		}
		subscribers = append(subscribers, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィード購読者の走査に失敗しました: %w", err)
	}
	return subscribers, nil
}

// compile-time interface check
var _ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
