package publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/shinkan/internal/model"
	"github.com/hitoshi/shinkan/internal/platform"
	"github.com/hitoshi/shinkan/internal/repository"
	"github.com/hitoshi/shinkan/internal/sink"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockPlatform は関数フィールドでPlatformをモックする。
type mockPlatform struct {
	info            platform.Info
	fetchLatestFunc func(ctx context.Context, itemsID string) (*platform.Item, error)
}

var _ platform.Platform = (*mockPlatform)(nil)

func (m *mockPlatform) Info() platform.Info { return m.info }
func (m *mockPlatform) FetchSource(ctx context.Context, id string) (*platform.Source, error) {
	return nil, errors.New("not implemented")
}
func (m *mockPlatform) FetchLatest(ctx context.Context, itemsID string) (*platform.Item, error) {
	return m.fetchLatestFunc(ctx, itemsID)
}
func (m *mockPlatform) IDFromSourceURL(rawURL string) (string, error) {
	return "", errors.New("not implemented")
}
func (m *mockPlatform) SourceURLFromID(id string) string { return id }

type mockFeedRepo struct {
	repository.FeedRepository
	listWithSubscribersFunc func(ctx context.Context) ([]*model.Feed, error)
}

func (m *mockFeedRepo) ListWithSubscribers(ctx context.Context) ([]*model.Feed, error) {
	return m.listWithSubscribersFunc(ctx)
}

// mockItemRepo はインメモリでアイテムを保持するモック。
type mockItemRepo struct {
	repository.ItemRepository
	mu    sync.Mutex
	items []*model.FeedItem
}

func (m *mockItemRepo) FindLatestByFeedID(ctx context.Context, feedID string) (*model.FeedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.FeedItem
	for _, item := range m.items {
		if item.FeedID != feedID {
			continue
		}
		if latest == nil || item.Published.After(latest.Published) {
			latest = item
		}
	}
	return latest, nil
}

func (m *mockItemRepo) Create(ctx context.Context, item *model.FeedItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
	return nil
}

type mockSubscriptionRepo struct {
	repository.SubscriptionRepository
	listSubscribersFunc func(ctx context.Context, feedID string) ([]*model.Subscriber, error)
}

func (m *mockSubscriptionRepo) ListSubscribersByFeedID(ctx context.Context, feedID string) ([]*model.Subscriber, error) {
	return m.listSubscribersFunc(ctx, feedID)
}

// mockSink は受信したイベントを記録するモック。
type mockSink struct {
	mu     sync.Mutex
	events []*model.FeedUpdateEvent
	err    error
}

var _ sink.Sink = (*mockSink)(nil)

func (m *mockSink) Notify(ctx context.Context, subscriber *model.Subscriber, event *model.FeedUpdateEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockSink) received() []*model.FeedUpdateEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.FeedUpdateEvent(nil), m.events...)
}

func testFeed() *model.Feed {
	return &model.Feed{
		ID:         "feed-1",
		PlatformID: "testplat",
		SourceID:   "source-1",
		ItemsID:    "source-1",
		Name:       "テスト作品",
		SourceURL:  "https://test.example/title/source-1",
	}
}

func newTestPublisher(plat *mockPlatform, feedRepo *mockFeedRepo, itemRepo *mockItemRepo, subRepo *mockSubscriptionRepo, s sink.Sink) *Publisher {
	reg := platform.NewRegistry(plat)
	return NewPublisher(reg, feedRepo, itemRepo, subRepo, s, nil, testLogger(), 0)
}

// TestRunOnce_NewItemThenUpdate は2回のサイクルで更新が1回だけ配送されることを検証する。
func TestRunOnce_NewItemThenUpdate(t *testing.T) {
	t0 := time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(7 * 24 * time.Hour)

	current := &platform.Item{Title: "Chapter 1", Published: t0}
	var mu sync.Mutex

	plat := &mockPlatform{
		info: platform.Info{ID: "testplat"},
		fetchLatestFunc: func(ctx context.Context, itemsID string) (*platform.Item, error) {
			mu.Lock()
			defer mu.Unlock()
			return current, nil
		},
	}
	feedRepo := &mockFeedRepo{
		listWithSubscribersFunc: func(ctx context.Context) ([]*model.Feed, error) {
			return []*model.Feed{testFeed()}, nil
		},
	}
	itemRepo := &mockItemRepo{}
	subRepo := &mockSubscriptionRepo{
		listSubscribersFunc: func(ctx context.Context, feedID string) ([]*model.Subscriber, error) {
			return []*model.Subscriber{
				{ID: "sub-1", Type: model.SubscriberTypeGuild, TargetID: "123"},
			}, nil
		},
	}
	s := &mockSink{}
	p := newTestPublisher(plat, feedRepo, itemRepo, subRepo, s)

	// 1回目: 初回検出（PreviousItemなし）
	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnceに失敗: %v", err)
	}
	events := s.received()
	if len(events) != 1 {
		t.Fatalf("イベント数 = %d, want 1", len(events))
	}
	if events[0].Item.Title != "Chapter 1" || events[0].PreviousItem != nil {
		t.Errorf("初回イベント = %+v", events[0])
	}

	// 同じアイテムのままの2回目は配送されない
	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnceに失敗: %v", err)
	}
	if len(s.received()) != 1 {
		t.Errorf("更新なしで配送された")
	}

	// 新しいチャプターを公開
	mu.Lock()
	current = &platform.Item{Title: "Chapter 2", Published: t1}
	mu.Unlock()

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnceに失敗: %v", err)
	}

	events = s.received()
	if len(events) != 2 {
		t.Fatalf("イベント数 = %d, want 2", len(events))
	}
	last := events[1]
	if last.Item.Title != "Chapter 2" || !last.Item.Published.Equal(t1) {
		t.Errorf("Item = %+v", last.Item)
	}
	if last.PreviousItem == nil || last.PreviousItem.Title != "Chapter 1" {
		t.Errorf("PreviousItem = %+v", last.PreviousItem)
	}

	// feed_itemsには2行記録される
	if len(itemRepo.items) != 2 {
		t.Errorf("アイテム行数 = %d, want 2", len(itemRepo.items))
	}
}

// TestRunOnce_TitleChangeAtSameTime は同時刻でタイトルが変わった場合に更新扱いになることを検証する。
func TestRunOnce_TitleChangeAtSameTime(t *testing.T) {
	t0 := time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)

	current := &platform.Item{Title: "Chapter 1", Published: t0}
	var mu sync.Mutex

	plat := &mockPlatform{
		info: platform.Info{ID: "testplat"},
		fetchLatestFunc: func(ctx context.Context, itemsID string) (*platform.Item, error) {
			mu.Lock()
			defer mu.Unlock()
			return current, nil
		},
	}
	feedRepo := &mockFeedRepo{
		listWithSubscribersFunc: func(ctx context.Context) ([]*model.Feed, error) {
			return []*model.Feed{testFeed()}, nil
		},
	}
	itemRepo := &mockItemRepo{}
	subRepo := &mockSubscriptionRepo{
		listSubscribersFunc: func(ctx context.Context, feedID string) ([]*model.Subscriber, error) {
			return []*model.Subscriber{{ID: "sub-1", TargetID: "123"}}, nil
		},
	}
	s := &mockSink{}
	p := newTestPublisher(plat, feedRepo, itemRepo, subRepo, s)

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnceに失敗: %v", err)
	}

	mu.Lock()
	current = &platform.Item{Title: "Chapter 1.5", Published: t0}
	mu.Unlock()

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnceに失敗: %v", err)
	}

	events := s.received()
	if len(events) != 2 {
		t.Fatalf("イベント数 = %d, want 2", len(events))
	}
	if events[1].Item.Title != "Chapter 1.5" {
		t.Errorf("Item.Title = %q", events[1].Item.Title)
	}
}

// TestRunOnce_EmptySourceSkipped はアイテム未公開のソースが更新なし扱いになることを検証する。
func TestRunOnce_EmptySourceSkipped(t *testing.T) {
	plat := &mockPlatform{
		info: platform.Info{ID: "testplat"},
		fetchLatestFunc: func(ctx context.Context, itemsID string) (*platform.Item, error) {
			return nil, platform.NewEmptySourceError(itemsID)
		},
	}
	feedRepo := &mockFeedRepo{
		listWithSubscribersFunc: func(ctx context.Context) ([]*model.Feed, error) {
			return []*model.Feed{testFeed()}, nil
		},
	}
	itemRepo := &mockItemRepo{}
	subRepo := &mockSubscriptionRepo{
		listSubscribersFunc: func(ctx context.Context, feedID string) ([]*model.Subscriber, error) {
			return nil, nil
		},
	}
	s := &mockSink{}
	p := newTestPublisher(plat, feedRepo, itemRepo, subRepo, s)

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnceに失敗: %v", err)
	}
	if len(s.received()) != 0 {
		t.Error("配送されるべきでない")
	}
	if len(itemRepo.items) != 0 {
		t.Error("アイテムが記録されるべきでない")
	}
}

// TestRunOnce_FeedFailureIsolation は1フィードの失敗が他フィードに影響しないことを検証する。
func TestRunOnce_FeedFailureIsolation(t *testing.T) {
	t0 := time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)

	plat := &mockPlatform{
		info: platform.Info{ID: "testplat"},
		fetchLatestFunc: func(ctx context.Context, itemsID string) (*platform.Item, error) {
			if itemsID == "broken" {
				return nil, platform.NewAPIError("internal server error")
			}
			return &platform.Item{Title: "Chapter 1", Published: t0}, nil
		},
	}
	broken := testFeed()
	broken.ID = "feed-broken"
	broken.ItemsID = "broken"

	feedRepo := &mockFeedRepo{
		listWithSubscribersFunc: func(ctx context.Context) ([]*model.Feed, error) {
			return []*model.Feed{broken, testFeed()}, nil
		},
	}
	itemRepo := &mockItemRepo{}
	subRepo := &mockSubscriptionRepo{
		listSubscribersFunc: func(ctx context.Context, feedID string) ([]*model.Subscriber, error) {
			return []*model.Subscriber{{ID: "sub-1", TargetID: "123"}}, nil
		},
	}
	s := &mockSink{}
	p := newTestPublisher(plat, feedRepo, itemRepo, subRepo, s)

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnceに失敗: %v", err)
	}

	events := s.received()
	if len(events) != 1 {
		t.Fatalf("イベント数 = %d, want 1", len(events))
	}
	if events[0].FeedID != "feed-1" {
		t.Errorf("FeedID = %q", events[0].FeedID)
	}
}

// TestRunOnce_DeliveryFailureLogged は配送失敗がアイテム記録を妨げないことを検証する。
func TestRunOnce_DeliveryFailureLogged(t *testing.T) {
	t0 := time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)

	plat := &mockPlatform{
		info: platform.Info{ID: "testplat"},
		fetchLatestFunc: func(ctx context.Context, itemsID string) (*platform.Item, error) {
			return &platform.Item{Title: "Chapter 1", Published: t0}, nil
		},
	}
	feedRepo := &mockFeedRepo{
		listWithSubscribersFunc: func(ctx context.Context) ([]*model.Feed, error) {
			return []*model.Feed{testFeed()}, nil
		},
	}
	itemRepo := &mockItemRepo{}
	subRepo := &mockSubscriptionRepo{
		listSubscribersFunc: func(ctx context.Context, feedID string) ([]*model.Subscriber, error) {
			return []*model.Subscriber{{ID: "sub-1", TargetID: "123"}}, nil
		},
	}
	s := &mockSink{err: errors.New("webhook down")}
	p := newTestPublisher(plat, feedRepo, itemRepo, subRepo, s)

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnceに失敗: %v", err)
	}
	if len(itemRepo.items) != 1 {
		t.Errorf("アイテム行数 = %d, want 1", len(itemRepo.items))
	}
}
