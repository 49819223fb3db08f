package platform

import "testing"

// TestExtractDomain はURLからのドメイン抽出を検証する。
func TestExtractDomain(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "スキーム付きURL", url: "https://mangadex.org/title/abc", want: "mangadex.org"},
		{name: "wwwプレフィックスは除去", url: "https://www.anilist.co/anime/1", want: "anilist.co"},
		{name: "ポート番号は除去", url: "http://comick.dev:8080/comic/x", want: "comick.dev"},
		{name: "クエリ付きURL", url: "https://example.com/feed?page=2", want: "example.com"},
		{name: "スキーム無し", url: "mangadex.org/title/abc", want: "mangadex.org"},
		{name: "空文字", url: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractDomain(tt.url); got != tt.want {
				t.Errorf("ExtractDomain(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

// TestRegistryBySourceURL はURLドメインによるアダプタ解決を検証する。
func TestRegistryBySourceURL(t *testing.T) {
	anilist := NewAniListPlatform(nil, 0, testLogger())
	mangadex := NewMangaDexPlatform(nil, 0, testLogger())
	comick := NewComickPlatform(nil, 0, testLogger())
	registry := NewRegistry(anilist, mangadex, comick)

	tests := []struct {
		name   string
		url    string
		wantID string
	}{
		{name: "AniListのURL", url: "https://anilist.co/anime/401043", wantID: "anilist"},
		{name: "MangaDexのURL", url: "https://mangadex.org/title/abc", wantID: "mangadex"},
		{name: "ComickのURL", url: "https://comick.dev/comic/slug", wantID: "comick"},
		{name: "wwwプレフィックス付き", url: "https://www.mangadex.org/title/abc", wantID: "mangadex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := registry.BySourceURL(tt.url)
			if err != nil {
				t.Fatalf("BySourceURL() error = %v", err)
			}
			if p.Info().ID != tt.wantID {
				t.Errorf("platform = %s, want %s", p.Info().ID, tt.wantID)
			}
		})
	}

	t.Run("未対応ドメインはUnsupportedURL", func(t *testing.T) {
		_, err := registry.BySourceURL("https://example.com/feed")
		if !IsCode(err, CodeUnsupportedURL) {
			t.Fatalf("error = %v, want UnsupportedURL", err)
		}
	})

	t.Run("フォールバックがあれば未対応ドメインも解決する", func(t *testing.T) {
		rss := NewRSSPlatform(nil, 0, 0, testLogger())
		registry.SetFallback(rss)
		t.Cleanup(func() { registry.SetFallback(nil) })

		p, err := registry.BySourceURL("https://example.com/feed.xml")
		if err != nil {
			t.Fatalf("BySourceURL() error = %v", err)
		}
		if p.Info().ID != "rss" {
			t.Errorf("platform = %s, want rss", p.Info().ID)
		}
	})

	t.Run("ByIDは登録済みアダプタを返す", func(t *testing.T) {
		if p := registry.ByID("comick"); p == nil || p.Info().ID != "comick" {
			t.Errorf("ByID(comick) = %v", p)
		}
		if p := registry.ByID("unknown"); p != nil {
			t.Errorf("ByID(unknown) = %v, want nil", p)
		}
	})
}

// TestNthPathSegment はドメイン以降のパスセグメント抽出を検証する。
func TestNthPathSegment(t *testing.T) {
	b := NewBase(Info{ID: "test"}, nil, nil, testLogger())

	tests := []struct {
		name    string
		url     string
		n       int
		want    string
		wantErr ErrorCode
	}{
		{name: "2番目のセグメント", url: "https://example.com/anime/123", n: 1, want: "123"},
		{name: "空セグメントは数えない", url: "https://example.com//anime//123/", n: 1, want: "123"},
		{name: "クエリは無視される", url: "https://example.com/anime/123?ref=top", n: 1, want: "123"},
		{name: "ドメインが含まれない", url: "https://other.org/anime/123", n: 1, wantErr: CodeInvalidFormat},
		{name: "セグメント不足", url: "https://example.com/anime", n: 1, wantErr: CodeMissingID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.NthPathSegment(tt.url, "example.com", tt.n)
			if tt.wantErr != "" {
				if !IsCode(err, tt.wantErr) {
					t.Fatalf("error = %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NthPathSegment() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("segment = %q, want %q", got, tt.want)
			}
		})
	}
}
