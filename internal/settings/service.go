// Package settings はギルドごとの設定管理を提供する。
package settings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/shinkan/internal/model"
	"github.com/hitoshi/shinkan/internal/repository"
)

// VoiceTrackingCache はボイストラッキングの有効/無効キャッシュの更新インターフェース。
// 設定の書き込み時にインメモリキャッシュを無効化するために使用する。
type VoiceTrackingCache interface {
	SetVoiceTracking(guildID int64, enabled bool)
}

// Service はギルド設定の読み書きを行う。
type Service struct {
	settingsRepo repository.SettingsRepository
	voiceCache   VoiceTrackingCache
	logger       *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// voiceCacheはnilでもよい（キャッシュ更新をスキップする）。
func NewService(
	settingsRepo repository.SettingsRepository,
	voiceCache VoiceTrackingCache,
	logger *slog.Logger,
) *Service {
	return &Service{
		settingsRepo: settingsRepo,
		voiceCache:   voiceCache,
		logger:       logger,
	}
}

// Get は指定ギルドの設定を取得する。未設定の場合はデフォルト値を返す。
func (s *Service) Get(ctx context.Context, guildID int64) (*model.ServerSettings, error) {
	settings, err := s.settingsRepo.Find(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}
	if settings == nil {
		return &model.ServerSettings{}, nil
	}
	return settings, nil
}

// UpdateFeeds はギルドのフィード通知設定を更新する。
// nilのフィールドは既存値を維持する。
func (s *Service) UpdateFeeds(ctx context.Context, guildID int64, update model.FeedsSettings) (*model.ServerSettings, error) {
	settings, err := s.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}

	if update.Enabled != nil {
		settings.Feeds.Enabled = update.Enabled
	}
	if update.ChannelID != nil {
		settings.Feeds.ChannelID = update.ChannelID
	}
	if update.SubscribeRoleID != nil {
		settings.Feeds.SubscribeRoleID = update.SubscribeRoleID
	}
	if update.UnsubscribeRoleID != nil {
		settings.Feeds.UnsubscribeRoleID = update.UnsubscribeRoleID
	}

	if err := s.settingsRepo.Upsert(ctx, guildID, settings); err != nil {
		return nil, fmt.Errorf("設定の保存に失敗しました: %w", err)
	}

	s.logger.Info("フィード設定を更新しました",
		slog.Int64("guild_id", guildID),
	)
	return settings, nil
}

// UpdateVoice はギルドのボイストラッキング設定を更新し、
// インメモリの無効化ギルドキャッシュに反映する。
func (s *Service) UpdateVoice(ctx context.Context, guildID int64, update model.VoiceSettings) (*model.ServerSettings, error) {
	settings, err := s.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}

	if update.Enabled != nil {
		settings.Voice.Enabled = update.Enabled
	}

	if err := s.settingsRepo.Upsert(ctx, guildID, settings); err != nil {
		return nil, fmt.Errorf("設定の保存に失敗しました: %w", err)
	}

	if s.voiceCache != nil {
		s.voiceCache.SetVoiceTracking(guildID, settings.VoiceTrackingEnabled())
	}

	s.logger.Info("ボイス設定を更新しました",
		slog.Int64("guild_id", guildID),
		slog.Bool("enabled", settings.VoiceTrackingEnabled()),
	)
	return settings, nil
}
