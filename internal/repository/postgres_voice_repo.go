package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/shinkan/internal/model"
)

// PostgresVoiceSessionRepo はPostgreSQLを使用したボイスセッションリポジトリ。
type PostgresVoiceSessionRepo struct {
	db *sql.DB
}

// NewPostgresVoiceSessionRepo はPostgresVoiceSessionRepoを生成する。
func NewPostgresVoiceSessionRepo(db *sql.DB) *PostgresVoiceSessionRepo {
	return &PostgresVoiceSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresVoiceSessionRepo) Create(ctx context.Context, session *model.VoiceSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO voice_sessions (id, user_id, guild_id, channel_id, join_time, leave_time)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, session.UserID, session.GuildID, session.ChannelID,
		session.JoinTime, session.LeaveTime,
	)
	if err != nil {
		return fmt.Errorf("ボイスセッションの作成に失敗しました: %w", err)
	}
	return nil
}

// FindActive は指定ユーザー・チャンネルのアクティブセッションを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresVoiceSessionRepo) FindActive(ctx context.Context, userID, channelID int64) (*model.VoiceSession, error) {
	session := &model.VoiceSession{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, guild_id, channel_id, join_time, leave_time
		 FROM voice_sessions
		 WHERE user_id = $1 AND channel_id = $2 AND leave_time = join_time
		 ORDER BY join_time DESC
		 LIMIT 1`,
		userID, channelID,
	).Scan(
		&session.ID, &session.UserID, &session.GuildID, &session.ChannelID,
		&session.JoinTime, &session.LeaveTime,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アクティブセッションの取得に失敗しました: %w", err)
	}
	return session, nil
}

// UpdateLeaveTime は指定セッションのleave_timeを更新する。
// ハートビートによるスライドとleaveイベントによるクローズの両方で使用する。
func (r *PostgresVoiceSessionRepo) UpdateLeaveTime(ctx context.Context, userID, channelID int64, joinTime, leaveTime time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE voice_sessions
		 SET leave_time = $4
		 WHERE user_id = $1 AND channel_id = $2 AND join_time = $3`,
		userID, channelID, joinTime, leaveTime,
	)
	if err != nil {
		return fmt.Errorf("leave_timeの更新に失敗しました: %w", err)
	}
	return nil
}

// CloseAllActiveAt は全アクティブセッションをcloseTimeで閉じ、閉じた行数を返す。
func (r *PostgresVoiceSessionRepo) CloseAllActiveAt(ctx context.Context, closeTime time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE voice_sessions SET leave_time = $1 WHERE leave_time = join_time`,
		closeTime,
	)
	if err != nil {
		return 0, fmt.Errorf("アクティブセッションのクローズに失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("クローズ結果の取得に失敗しました: %w", err)
	}
	return affected, nil
}

// ListByGuildInRange はギルドのセッションを期間で絞り込んで返す。
// 期間はセッションのjoin_timeで判定する。
func (r *PostgresVoiceSessionRepo) ListByGuildInRange(ctx context.Context, guildID int64, since, until *time.Time) ([]*model.VoiceSession, error) {
	query := `SELECT id, user_id, guild_id, channel_id, join_time, leave_time
	          FROM voice_sessions WHERE guild_id = $1`
	args := []any{guildID}

	if since != nil {
		args = append(args, *since)
		query += fmt.Sprintf(" AND join_time >= $%d", len(args))
	}
	if until != nil {
		args = append(args, *until)
		query += fmt.Sprintf(" AND join_time <= $%d", len(args))
	}
	query += " ORDER BY join_time ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ボイスセッション一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sessions []*model.VoiceSession
	for rows.Next() {
		session := &model.VoiceSession{}
		if err := rows.Scan(
			&session.ID, &session.UserID, &session.GuildID, &session.ChannelID,
			&session.JoinTime, &session.LeaveTime,
		); err != nil {
			return nil, fmt.Errorf("ボイスセッションの読み取りに失敗しました: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ボイスセッション一覧の走査に失敗しました: %w", err)
	}
	return sessions, nil
}

// compile-time interface check
var _ VoiceSessionRepository = (*PostgresVoiceSessionRepo)(nil)
