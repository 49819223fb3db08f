package settings

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/hitoshi/shinkan/internal/model"
	"github.com/hitoshi/shinkan/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockSettingsRepo struct {
	repository.SettingsRepository
	findFunc   func(ctx context.Context, guildID int64) (*model.ServerSettings, error)
	upsertFunc func(ctx context.Context, guildID int64, settings *model.ServerSettings) error
}

func (m *mockSettingsRepo) Find(ctx context.Context, guildID int64) (*model.ServerSettings, error) {
	return m.findFunc(ctx, guildID)
}

func (m *mockSettingsRepo) Upsert(ctx context.Context, guildID int64, settings *model.ServerSettings) error {
	return m.upsertFunc(ctx, guildID, settings)
}

type mockVoiceCache struct {
	calls map[int64]bool
}

func (m *mockVoiceCache) SetVoiceTracking(guildID int64, enabled bool) {
	if m.calls == nil {
		m.calls = make(map[int64]bool)
	}
	m.calls[guildID] = enabled
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

// TestGet_Defaults は未設定ギルドでデフォルト値が返ることを検証する。
func TestGet_Defaults(t *testing.T) {
	repo := &mockSettingsRepo{
		findFunc: func(ctx context.Context, guildID int64) (*model.ServerSettings, error) {
			return nil, nil
		},
	}
	svc := NewService(repo, nil, testLogger())

	settings, err := svc.Get(context.Background(), 100)
	if err != nil {
		t.Fatalf("Getに失敗: %v", err)
	}
	if settings == nil {
		t.Fatal("設定がnil")
	}
	if !settings.VoiceTrackingEnabled() {
		t.Error("デフォルトではボイストラッキングは有効であるべき")
	}
}

// TestUpdateFeeds_PartialUpdate は指定フィールドのみが更新されることを検証する。
func TestUpdateFeeds_PartialUpdate(t *testing.T) {
	existing := &model.ServerSettings{
		Feeds: model.FeedsSettings{
			ChannelID:       strPtr("111"),
			SubscribeRoleID: strPtr("222"),
		},
	}

	var saved *model.ServerSettings
	repo := &mockSettingsRepo{
		findFunc: func(ctx context.Context, guildID int64) (*model.ServerSettings, error) {
			return existing, nil
		},
		upsertFunc: func(ctx context.Context, guildID int64, settings *model.ServerSettings) error {
			saved = settings
			return nil
		},
	}
	svc := NewService(repo, nil, testLogger())

	_, err := svc.UpdateFeeds(context.Background(), 100, model.FeedsSettings{
		ChannelID: strPtr("999"),
	})
	if err != nil {
		t.Fatalf("UpdateFeedsに失敗: %v", err)
	}

	if saved == nil {
		t.Fatal("設定が保存されていない")
	}
	if saved.Feeds.ChannelID == nil || *saved.Feeds.ChannelID != "999" {
		t.Errorf("ChannelID = %v", saved.Feeds.ChannelID)
	}
	if saved.Feeds.SubscribeRoleID == nil || *saved.Feeds.SubscribeRoleID != "222" {
		t.Errorf("SubscribeRoleIDが維持されていない: %v", saved.Feeds.SubscribeRoleID)
	}
}

// TestUpdateVoice_InvalidatesCache はボイス設定の更新でキャッシュが反映されることを検証する。
func TestUpdateVoice_InvalidatesCache(t *testing.T) {
	repo := &mockSettingsRepo{
		findFunc: func(ctx context.Context, guildID int64) (*model.ServerSettings, error) {
			return nil, nil
		},
		upsertFunc: func(ctx context.Context, guildID int64, settings *model.ServerSettings) error {
			return nil
		},
	}
	cache := &mockVoiceCache{}
	svc := NewService(repo, cache, testLogger())

	t.Run("無効化", func(t *testing.T) {
		settings, err := svc.UpdateVoice(context.Background(), 200, model.VoiceSettings{Enabled: boolPtr(false)})
		if err != nil {
			t.Fatalf("UpdateVoiceに失敗: %v", err)
		}
		if settings.VoiceTrackingEnabled() {
			t.Error("無効化されるべき")
		}
		if enabled, ok := cache.calls[200]; !ok || enabled {
			t.Errorf("キャッシュが無効化されていない: %v", cache.calls)
		}
	})

	t.Run("再有効化", func(t *testing.T) {
		_, err := svc.UpdateVoice(context.Background(), 200, model.VoiceSettings{Enabled: boolPtr(true)})
		if err != nil {
			t.Fatalf("UpdateVoiceに失敗: %v", err)
		}
		if enabled := cache.calls[200]; !enabled {
			t.Errorf("キャッシュが有効化されていない: %v", cache.calls)
		}
	})
}
