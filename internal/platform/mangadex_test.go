package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testMangaUUID = "a96676e5-8ae2-425e-b549-7f15dd34a6d8"

func newTestMangaDex(t *testing.T, handler http.HandlerFunc) *MangaDexPlatform {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewMangaDexPlatform(srv.Client(), 0, testLogger())
	p.apiURL = srv.URL
	return p
}

// TestMangaDexFetchLatest はフィードからの最新チャプター取得を検証する。
func TestMangaDexFetchLatest(t *testing.T) {
	t.Run("最新チャプターを返す", func(t *testing.T) {
		p := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, fmt.Sprintf("/manga/%s/feed", testMangaUUID)) {
				t.Errorf("path = %s", r.URL.Path)
			}
			q := r.URL.Query()
			if q.Get("order[createdAt]") != "desc" {
				t.Errorf("order[createdAt] = %q, want desc", q.Get("order[createdAt]"))
			}
			if q.Get("limit") != "1" {
				t.Errorf("limit = %q, want 1", q.Get("limit"))
			}
			langs := q["translatedLanguage[]"]
			if len(langs) != 2 || langs[0] != "en" || langs[1] != "id" {
				t.Errorf("translatedLanguage[] = %v", langs)
			}
			io.WriteString(w, `{"result":"ok","data":[
				{"id":"eb39e975-a6e2-4677-8bfc-ac5498c069d5","attributes":{"chapter":"105","publishAt":"2025-12-23T03:19:29+00:00"}}
			]}`)
		})

		item, err := p.FetchLatest(context.Background(), testMangaUUID)
		if err != nil {
			t.Fatalf("FetchLatest() error = %v", err)
		}
		if item.ID != "eb39e975-a6e2-4677-8bfc-ac5498c069d5" {
			t.Errorf("ID = %q, want %q", item.ID, "eb39e975-a6e2-4677-8bfc-ac5498c069d5")
		}
		if item.Title != "105" {
			t.Errorf("Title = %q, want %q", item.Title, "105")
		}
		want := time.Date(2025, 12, 23, 3, 19, 29, 0, time.UTC)
		if !item.Published.Equal(want) {
			t.Errorf("Published = %v, want %v", item.Published, want)
		}
	})

	t.Run("チャプターが空の場合はEmptySource", func(t *testing.T) {
		p := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"result":"ok","data":[]}`)
		})

		_, err := p.FetchLatest(context.Background(), testMangaUUID)
		if !IsCode(err, CodeEmptySource) {
			t.Fatalf("error = %v, want EmptySource", err)
		}
	})

	t.Run("publishAtの形式が不正な場合はInvalidTime", func(t *testing.T) {
		p := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"data":[{"attributes":{"chapter":"1","publishAt":"yesterday"}}]}`)
		})

		_, err := p.FetchLatest(context.Background(), testMangaUUID)
		if !IsCode(err, CodeInvalidTime) {
			t.Fatalf("error = %v, want InvalidTime", err)
		}
	})

	t.Run("UUIDでないIDはInvalidSourceID", func(t *testing.T) {
		p := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("IDの検証前にリクエストが送信された")
		})

		_, err := p.FetchLatest(context.Background(), "not-a-uuid")
		if !IsCode(err, CodeInvalidSourceID) {
			t.Fatalf("error = %v, want InvalidSourceID", err)
		}
	})

	t.Run("APIエラーはdetailをメッセージにする", func(t *testing.T) {
		p := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"result":"error","errors":[{"title":"not_found","detail":"Manga does not exist"}]}`)
		})

		_, err := p.FetchLatest(context.Background(), testMangaUUID)
		if !IsCode(err, CodeAPIError) {
			t.Fatalf("error = %v, want APIError", err)
		}
		if !strings.Contains(err.Error(), "Manga does not exist") {
			t.Errorf("error = %v, want detail message", err)
		}
	})
}

// TestMangaDexFetchSource は作品メタデータの取得とタイトル言語の優先順位を検証する。
func TestMangaDexFetchSource(t *testing.T) {
	t.Run("カバー画像込みでメタデータを返す", func(t *testing.T) {
		p := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("includes[]") != "cover_art" {
				t.Errorf("includes[] = %q", r.URL.Query().Get("includes[]"))
			}
			io.WriteString(w, `{"result":"ok","data":{
				"attributes":{
					"title":{"en":"Frieren: Beyond Journey's End"},
					"altTitles":[{"ja":"葬送のフリーレン"}],
					"description":{"en":"The adventure is over."}
				},
				"relationships":[
					{"type":"author","attributes":{}},
					{"type":"cover_art","attributes":{"fileName":"cover.jpg"}}
				]
			}}`)
		})

		src, err := p.FetchSource(context.Background(), testMangaUUID)
		if err != nil {
			t.Fatalf("FetchSource() error = %v", err)
		}
		if src.Name != "Frieren: Beyond Journey's End" {
			t.Errorf("Name = %q", src.Name)
		}
		if src.Description != "The adventure is over." {
			t.Errorf("Description = %q", src.Description)
		}
		wantCover := fmt.Sprintf("https://uploads.mangadex.org/covers/%s/cover.jpg", testMangaUUID)
		if src.CoverURL != wantCover {
			t.Errorf("CoverURL = %q, want %q", src.CoverURL, wantCover)
		}
		if src.SourceURL != fmt.Sprintf("https://mangadex.org/title/%s", testMangaUUID) {
			t.Errorf("SourceURL = %q", src.SourceURL)
		}
	})

	t.Run("タイトルは言語の優先順位で選択される", func(t *testing.T) {
		tests := []struct {
			name string
			body string
			want string
		}{
			{
				name: "enが最優先",
				body: `{"title":{"en":"English","ja":"日本語"},"altTitles":[],"description":{}}`,
				want: "English",
			},
			{
				name: "enはaltTitlesも調べる",
				body: `{"title":{"ja":"日本語"},"altTitles":[{"en":"Alt English"}],"description":{}}`,
				want: "Alt English",
			},
			{
				name: "enが無ければja-ro",
				body: `{"title":{"ja":"日本語"},"altTitles":[{"ja-ro":"Nihongo"}],"description":{}}`,
				want: "Nihongo",
			},
			{
				name: "最後にja",
				body: `{"title":{"ja":"日本語"},"altTitles":[],"description":{}}`,
				want: "日本語",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				p := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
					io.WriteString(w, fmt.Sprintf(`{"data":{"attributes":%s,"relationships":[]}}`, tt.body))
				})

				src, err := p.FetchSource(context.Background(), testMangaUUID)
				if err != nil {
					t.Fatalf("FetchSource() error = %v", err)
				}
				if src.Name != tt.want {
					t.Errorf("Name = %q, want %q", src.Name, tt.want)
				}
			})
		}
	})

	t.Run("対応言語のタイトルが無い場合はMissingField", func(t *testing.T) {
		p := newTestMangaDex(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"data":{"attributes":{"title":{"ko":"한국어"},"altTitles":[],"description":{}},"relationships":[]}}`)
		})

		_, err := p.FetchSource(context.Background(), testMangaUUID)
		if !IsCode(err, CodeMissingField) {
			t.Fatalf("error = %v, want MissingField", err)
		}
	})
}

// TestMangaDexSourceURL はURLとIDの相互変換を検証する。
func TestMangaDexSourceURL(t *testing.T) {
	p := NewMangaDexPlatform(nil, 0, testLogger())

	t.Run("標準的なURLからUUIDを抽出する", func(t *testing.T) {
		id, err := p.IDFromSourceURL(fmt.Sprintf("https://mangadex.org/title/%s/frieren", testMangaUUID))
		if err != nil {
			t.Fatalf("IDFromSourceURL() error = %v", err)
		}
		if id != testMangaUUID {
			t.Errorf("id = %q, want %q", id, testMangaUUID)
		}
	})

	t.Run("UUIDでないセグメントはInvalidSourceID", func(t *testing.T) {
		_, err := p.IDFromSourceURL("https://mangadex.org/title/frieren")
		if !IsCode(err, CodeInvalidSourceID) {
			t.Fatalf("error = %v, want InvalidSourceID", err)
		}
	})

	t.Run("IDからURLへの往復が正規形に収束する", func(t *testing.T) {
		url := p.SourceURLFromID(testMangaUUID)
		id, err := p.IDFromSourceURL(url)
		if err != nil {
			t.Fatalf("IDFromSourceURL() error = %v", err)
		}
		if id != testMangaUUID {
			t.Errorf("id = %q, want %q", id, testMangaUUID)
		}
	})
}
