package voice

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/shinkan/internal/model"
)

// TestBeat_SlidesLeaveTimeAndWritesMeta は生存書き込みの動作を検証する。
func TestBeat_SlidesLeaveTimeAndWritesMeta(t *testing.T) {
	t0 := time.Date(2025, 12, 20, 12, 0, 0, 0, time.UTC)

	var slid []int64
	var metaValue string

	repo := &mockSessionRepo{
		createFunc: func(ctx context.Context, session *model.VoiceSession) error { return nil },
		updateLeaveTimeFunc: func(ctx context.Context, userID, channelID int64, joinTime, leaveTime time.Time) error {
			slid = append(slid, userID)
			if !leaveTime.After(joinTime) {
				t.Errorf("leave_time(%v)はjoin_time(%v)より後であるべき", leaveTime, joinTime)
			}
			return nil
		},
	}
	metaRepo := &mockMetaRepo{
		setFunc: func(ctx context.Context, key model.MetaKey, value string) error {
			if key != model.MetaKeyVoiceHeartbeat {
				t.Errorf("key = %q", key)
			}
			metaValue = value
			return nil
		},
	}

	tracker := NewTracker(repo, nil, testLogger())
	if err := tracker.HandleEvent(context.Background(), joinEvent(1001, 1, 50, t0)); err != nil {
		t.Fatalf("joinの処理に失敗: %v", err)
	}
	if err := tracker.HandleEvent(context.Background(), joinEvent(1002, 1, 50, t0)); err != nil {
		t.Fatalf("joinの処理に失敗: %v", err)
	}

	h := NewHeartbeatManager(tracker, repo, metaRepo, testLogger())
	if err := h.Beat(context.Background()); err != nil {
		t.Fatalf("Beatに失敗: %v", err)
	}

	if len(slid) != 2 {
		t.Errorf("leave_timeを進めたセッション数 = %d, want 2", len(slid))
	}

	parsed, err := time.Parse(time.RFC3339, metaValue)
	if err != nil {
		t.Fatalf("ハートビート値がRFC3339でない: %q", metaValue)
	}
	if time.Since(parsed) > time.Minute {
		t.Errorf("ハートビート値が古すぎる: %v", parsed)
	}
}

// TestRecoverFromCrash_ClosesOrphans は孤立セッションの復旧を検証する。
func TestRecoverFromCrash_ClosesOrphans(t *testing.T) {
	heartbeat := time.Now().UTC().Add(-5 * time.Minute).Truncate(time.Second)

	var closedAt time.Time
	repo := &mockSessionRepo{
		closeAllActiveFunc: func(ctx context.Context, closeTime time.Time) (int64, error) {
			closedAt = closeTime
			return 1, nil
		},
	}
	metaRepo := &mockMetaRepo{
		getFunc: func(ctx context.Context, key model.MetaKey) (string, error) {
			return heartbeat.Format(time.RFC3339), nil
		},
	}

	tracker := NewTracker(repo, nil, testLogger())
	h := NewHeartbeatManager(tracker, repo, metaRepo, testLogger())

	closed, err := h.RecoverFromCrash(context.Background())
	if err != nil {
		t.Fatalf("RecoverFromCrashに失敗: %v", err)
	}
	if closed != 1 {
		t.Errorf("closed = %d, want 1", closed)
	}
	if !closedAt.Equal(heartbeat) {
		t.Errorf("closeTime = %v, want %v", closedAt, heartbeat)
	}
}

// TestRecoverFromCrash_NoHeartbeat はハートビート不在時に何もしないことを検証する。
func TestRecoverFromCrash_NoHeartbeat(t *testing.T) {
	repo := &mockSessionRepo{
		closeAllActiveFunc: func(ctx context.Context, closeTime time.Time) (int64, error) {
			t.Error("ハートビート不在でCloseAllActiveAtが呼ばれた")
			return 0, nil
		},
	}
	metaRepo := &mockMetaRepo{
		getFunc: func(ctx context.Context, key model.MetaKey) (string, error) {
			return "", nil
		},
	}

	tracker := NewTracker(repo, nil, testLogger())
	h := NewHeartbeatManager(tracker, repo, metaRepo, testLogger())

	closed, err := h.RecoverFromCrash(context.Background())
	if err != nil {
		t.Fatalf("RecoverFromCrashに失敗: %v", err)
	}
	if closed != 0 {
		t.Errorf("closed = %d, want 0", closed)
	}
}

// TestRecoverFromCrash_InvalidTimestamp は不正なハートビート値でエラーになることを検証する。
func TestRecoverFromCrash_InvalidTimestamp(t *testing.T) {
	repo := &mockSessionRepo{}
	metaRepo := &mockMetaRepo{
		getFunc: func(ctx context.Context, key model.MetaKey) (string, error) {
			return "not-a-timestamp", nil
		},
	}

	tracker := NewTracker(repo, nil, testLogger())
	h := NewHeartbeatManager(tracker, repo, metaRepo, testLogger())

	if _, err := h.RecoverFromCrash(context.Background()); err == nil {
		t.Fatal("エラーが返るべき")
	}
}
