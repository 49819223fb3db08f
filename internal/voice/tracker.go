// Package voice はボイスチャンネルの滞在セッショントラッキングを提供する。
// 外部のボットシェルから届くjoin/move/leaveイベントを消費し、
// セッションの開始・終了をvoice_sessionsテーブルに記録する。
package voice

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/shinkan/internal/metrics"
	"github.com/hitoshi/shinkan/internal/model"
	"github.com/hitoshi/shinkan/internal/repository"
)

// maxSessionSeconds はリーダーボード集計時の1セッションあたりの上限秒数。
// 復旧をすり抜けた放置セッションの影響を1日分に抑える。
const maxSessionSeconds = 86400

// Tracker はボイスイベントを処理し、アクティブセッションをメモリ上で追跡する。
// ボイスイベントは高頻度で届くため、無効化ギルドの判定は
// 起動時にシードしたインメモリキャッシュで行い、イベントごとのDB参照を避ける。
type Tracker struct {
	sessionRepo repository.VoiceSessionRepository
	collector   metrics.MetricsCollector
	logger      *slog.Logger

	mu     sync.RWMutex
	active map[int64]*model.VoiceSession // userID -> アクティブセッション

	disabledMu sync.RWMutex
	disabled   map[int64]struct{} // ボイストラッキング無効ギルド
}

// NewTracker はTrackerの新しいインスタンスを生成する。
func NewTracker(
	sessionRepo repository.VoiceSessionRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Tracker {
	if collector == nil {
		collector = metrics.NewNopCollector()
	}
	return &Tracker{
		sessionRepo: sessionRepo,
		collector:   collector,
		logger:      logger,
		active:      make(map[int64]*model.VoiceSession),
		disabled:    make(map[int64]struct{}),
	}
}

// SeedDisabledGuilds は無効化ギルドのキャッシュを初期化する。
// 起動時に1回呼び出す。
func (t *Tracker) SeedDisabledGuilds(ctx context.Context, settingsRepo repository.SettingsRepository) error {
	guilds, err := settingsRepo.ListVoiceDisabledGuilds(ctx)
	if err != nil {
		return fmt.Errorf("無効化ギルド一覧の取得に失敗しました: %w", err)
	}

	t.disabledMu.Lock()
	defer t.disabledMu.Unlock()
	t.disabled = make(map[int64]struct{}, len(guilds))
	for _, g := range guilds {
		t.disabled[g] = struct{}{}
	}

	t.logger.Info("ボイストラッキング無効ギルドをロードしました",
		slog.Int("count", len(guilds)),
	)
	return nil
}

// SetVoiceTracking はギルドの有効/無効キャッシュを更新する。
// 設定の書き込み時に呼び出され、キャッシュとDBの整合を保つ。
func (t *Tracker) SetVoiceTracking(guildID int64, enabled bool) {
	t.disabledMu.Lock()
	defer t.disabledMu.Unlock()
	if enabled {
		delete(t.disabled, guildID)
	} else {
		t.disabled[guildID] = struct{}{}
	}
}

// trackingDisabled はギルドのボイストラッキングが無効かどうかを返す。
func (t *Tracker) trackingDisabled(guildID int64) bool {
	t.disabledMu.RLock()
	defer t.disabledMu.RUnlock()
	_, ok := t.disabled[guildID]
	return ok
}

// HandleEvent はボイス状態イベントを処理する。
// joinはアクティブセッションの作成、leaveは終了、moveは終了と作成を連続で行う。
// 無効化ギルドのイベントは無視される。
func (t *Tracker) HandleEvent(ctx context.Context, event *model.VoiceEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	if t.trackingDisabled(event.GuildID) {
		return nil
	}

	t.collector.RecordVoiceEvent(string(event.Kind))

	t.mu.Lock()
	defer t.mu.Unlock()

	ts := event.Timestamp.UTC()

	switch event.Kind {
	case model.VoiceEventJoin, model.VoiceEventMove:
		// 追跡中のセッションがあれば先に閉じる（moveや取りこぼしたleave）
		if err := t.closeActiveLocked(ctx, event.UserID, ts); err != nil {
			return err
		}
		return t.openSessionLocked(ctx, event, ts)
	case model.VoiceEventLeave:
		return t.closeActiveLocked(ctx, event.UserID, ts)
	}
	return nil
}

// openSessionLocked は新しいアクティブセッションを作成する。呼び出し側がmuを保持する。
func (t *Tracker) openSessionLocked(ctx context.Context, event *model.VoiceEvent, ts time.Time) error {
	session := &model.VoiceSession{
		ID:        uuid.NewString(),
		UserID:    event.UserID,
		GuildID:   event.GuildID,
		ChannelID: event.ChannelID,
		JoinTime:  ts,
		LeaveTime: ts,
	}
	if err := t.sessionRepo.Create(ctx, session); err != nil {
		return fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	t.active[event.UserID] = session
	t.collector.SetActiveVoiceSessions(len(t.active))

	t.logger.Debug("ボイスセッションを開始しました",
		slog.Int64("user_id", event.UserID),
		slog.Int64("guild_id", event.GuildID),
		slog.Int64("channel_id", event.ChannelID),
	)
	return nil
}

// closeActiveLocked は追跡中のアクティブセッションを閉じる。呼び出し側がmuを保持する。
// 追跡中のセッションがない場合は何もしない。
func (t *Tracker) closeActiveLocked(ctx context.Context, userID int64, ts time.Time) error {
	session, ok := t.active[userID]
	if !ok {
		return nil
	}

	if err := t.sessionRepo.UpdateLeaveTime(ctx, session.UserID, session.ChannelID, session.JoinTime, ts); err != nil {
		return fmt.Errorf("セッションの終了に失敗しました: %w", err)
	}

	delete(t.active, userID)
	t.collector.SetActiveVoiceSessions(len(t.active))

	t.logger.Debug("ボイスセッションを終了しました",
		slog.Int64("user_id", session.UserID),
		slog.Int64("channel_id", session.ChannelID),
		slog.Duration("duration", ts.Sub(session.JoinTime)),
	)
	return nil
}

// ActiveSessions は追跡中のアクティブセッションのスナップショットを返す。
func (t *Tracker) ActiveSessions() []*model.VoiceSession {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*model.VoiceSession, 0, len(t.active))
	for _, s := range t.active {
		out = append(out, s)
	}
	return out
}

// Leaderboard はギルド内のユーザーごとの合計滞在時間を集計する。
// クローズ済みセッションのみを対象とし、1セッションの滞在は0〜86400秒の範囲に丸める。
// 合計降順で並べ、offset/limitでページングする。
func (t *Tracker) Leaderboard(ctx context.Context, opts model.LeaderboardOptions) ([]model.LeaderboardEntry, error) {
	sessions, err := t.sessionRepo.ListByGuildInRange(ctx, opts.GuildID, opts.Since, opts.Until)
	if err != nil {
		return nil, fmt.Errorf("セッション一覧の取得に失敗しました: %w", err)
	}

	totals := make(map[int64]int64)
	for _, s := range sessions {
		if s.IsActive() {
			continue
		}
		// クラッシュ回復は全アクティブ行を最終ハートビート時刻で閉じるため、
		// 最終ハートビート後に開始したセッションはleave_time < join_timeになりうる。
		duration := int64(s.LeaveTime.Sub(s.JoinTime).Seconds())
		if duration < 0 {
			duration = 0
		}
		if duration > maxSessionSeconds {
			duration = maxSessionSeconds
		}
		totals[s.UserID] += duration
	}

	entries := make([]model.LeaderboardEntry, 0, len(totals))
	for userID, total := range totals {
		entries = append(entries, model.LeaderboardEntry{UserID: userID, TotalDuration: total})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalDuration != entries[j].TotalDuration {
			return entries[i].TotalDuration > entries[j].TotalDuration
		}
		return entries[i].UserID < entries[j].UserID
	})

	if opts.Offset >= len(entries) {
		return []model.LeaderboardEntry{}, nil
	}
	entries = entries[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// validateEvent はイベントの形式を検証する。
func validateEvent(event *model.VoiceEvent) error {
	switch event.Kind {
	case model.VoiceEventJoin, model.VoiceEventMove, model.VoiceEventLeave:
	default:
		return model.NewInvalidEventError(fmt.Sprintf("不明なイベント種別: %s", event.Kind))
	}
	if event.UserID <= 0 || event.GuildID <= 0 {
		return model.NewInvalidEventError("user_idとguild_idは必須です")
	}
	if event.Kind != model.VoiceEventLeave && event.ChannelID <= 0 {
		return model.NewInvalidEventError("channel_idは必須です")
	}
	if event.Timestamp.IsZero() {
		return model.NewInvalidEventError("timestampは必須です")
	}
	return nil
}
