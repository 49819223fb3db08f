package voice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/shinkan/internal/model"
	"github.com/hitoshi/shinkan/internal/repository"
)

// HeartbeatManager は定期的な生存タイムスタンプの書き込みと、
// 起動時の孤立セッションの復旧を行う。
//
// 生存書き込みは「スライディングクローズ」方式を採る: 追跡中の全セッションの
// leave_timeを現在時刻まで進め、同じ時刻をbot_metaに記録する。
// プロセスが強制終了しても、滞在時間の過大計上は最大1インターバルに収まる。
type HeartbeatManager struct {
	tracker     *Tracker
	sessionRepo repository.VoiceSessionRepository
	metaRepo    repository.MetaRepository
	logger      *slog.Logger
}

// NewHeartbeatManager はHeartbeatManagerの新しいインスタンスを生成する。
func NewHeartbeatManager(
	tracker *Tracker,
	sessionRepo repository.VoiceSessionRepository,
	metaRepo repository.MetaRepository,
	logger *slog.Logger,
) *HeartbeatManager {
	return &HeartbeatManager{
		tracker:     tracker,
		sessionRepo: sessionRepo,
		metaRepo:    metaRepo,
		logger:      logger,
	}
}

// Start は指定間隔のティッカーで生存書き込みを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
// 実行中の書き込みは完了してから停止する。
func (h *HeartbeatManager) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.logger.Info("ハートビートを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("ハートビートを停止しました")
			return
		case <-ticker.C:
			if err := h.Beat(ctx); err != nil {
				h.logger.Error("ハートビートの書き込みに失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Beat は1回の生存書き込みを実行する。
// 追跡中の全セッションのleave_timeを現在時刻に進めた後、
// 同じ時刻をbot_metaのvoice_heartbeatキーに記録する。
func (h *HeartbeatManager) Beat(ctx context.Context) error {
	now := time.Now().UTC()

	for _, session := range h.tracker.ActiveSessions() {
		if err := h.sessionRepo.UpdateLeaveTime(ctx, session.UserID, session.ChannelID, session.JoinTime, now); err != nil {
			return fmt.Errorf("セッションのleave_time更新に失敗しました: %w", err)
		}
	}

	if err := h.metaRepo.Set(ctx, model.MetaKeyVoiceHeartbeat, now.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("ハートビートタイムスタンプの保存に失敗しました: %w", err)
	}
	return nil
}

// RecoverFromCrash は前回プロセスが残した孤立セッションを復旧する。
// bot_metaのハートビートが存在する場合、残存するアクティブセッションを
// その時刻で閉じ、閉じた件数を返す。ハートビートがなければクリーンシャットダウン
// とみなし何もしない。
//
// 各孤立セッションには「最後に生存が確認できた時刻」までの滞在が計上され、
// それ以上は決して計上されない。
func (h *HeartbeatManager) RecoverFromCrash(ctx context.Context) (int64, error) {
	value, err := h.metaRepo.Get(ctx, model.MetaKeyVoiceHeartbeat)
	if err != nil {
		return 0, fmt.Errorf("ハートビートタイムスタンプの取得に失敗しました: %w", err)
	}
	if value == "" {
		h.logger.Info("ハートビートが存在しないため復旧をスキップします")
		return 0, nil
	}

	heartbeat, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, fmt.Errorf("ハートビートタイムスタンプの形式が不正です: %w", err)
	}

	closed, err := h.sessionRepo.CloseAllActiveAt(ctx, heartbeat.UTC())
	if err != nil {
		return 0, fmt.Errorf("孤立セッションのクローズに失敗しました: %w", err)
	}

	if closed > 0 {
		h.logger.Info("孤立セッションを復旧しました",
			slog.Int64("closed_count", closed),
			slog.Time("heartbeat", heartbeat),
		)
	}
	return closed, nil
}
