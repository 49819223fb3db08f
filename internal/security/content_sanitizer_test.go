package security

import (
	"strings"
	"testing"
)

// TestSanitize_AllowedTags はプラットフォームの説明文が使う整形タグが
// 通過することを検証する。
func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{
			name:         "pタグが許可される",
			input:        "<p>三玖が勝つ物語。</p>",
			wantContains: []string{"<p>三玖が勝つ物語。</p>"},
		},
		{
			name:         "brタグが許可される",
			input:        "第1部<br>第2部",
			wantContains: []string{"<br>", "第1部", "第2部"},
		},
		{
			name:         "iタグとbタグが許可される",
			input:        "<i>Kaguya-sama</i>は<b>ラブコメ</b>です",
			wantContains: []string{"<i>Kaguya-sama</i>", "<b>ラブコメ</b>"},
		},
		{
			name:         "strongタグとemタグが許可される",
			input:        "<strong>完結</strong><em>全14巻</em>",
			wantContains: []string{"<strong>完結</strong>", "<em>全14巻</em>"},
		},
		{
			name:         "ulタグとliタグが許可される",
			input:        "<ul><li>第1話</li><li>第2話</li></ul>",
			wantContains: []string{"<ul>", "<li>第1話</li>", "<li>第2話</li>", "</ul>"},
		},
		{
			name:         "blockquoteタグが許可される",
			input:        "<blockquote>作者コメント</blockquote>",
			wantContains: []string{"<blockquote>作者コメント</blockquote>"},
		},
		{
			name:         "preタグとcodeタグが許可される",
			input:        "<pre><code>raw text</code></pre>",
			wantContains: []string{"<pre>", "<code>", "raw text"},
		},
		{
			name:         "aタグがhref付きで許可される",
			input:        `<a href="https://anilist.co/manga/101583">公式ページ</a>`,
			wantContains: []string{"<a", "https://anilist.co/manga/101583", "公式ページ", "</a>"},
		},
		{
			name:         "imgタグがhttps srcで許可される",
			input:        `<img src="https://example.com/cover.jpg" alt="表紙">`,
			wantContains: []string{"<img", "https://example.com/cover.jpg", `alt="表紙"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_ForbiddenContent は危険なタグ・属性が除去されることを検証する。
func TestSanitize_ForbiddenContent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantAbsent   []string
		wantContains []string
	}{
		{
			name:         "scriptタグが除去される",
			input:        `<p>あらすじ</p><script>alert('xss')</script>`,
			wantAbsent:   []string{"<script", "alert"},
			wantContains: []string{"あらすじ"},
		},
		{
			name:         "iframeタグが除去される",
			input:        `<p>あらすじ</p><iframe src="https://evil.example"></iframe>`,
			wantAbsent:   []string{"<iframe", "evil.example"},
			wantContains: []string{"あらすじ"},
		},
		{
			name:         "styleタグが除去される",
			input:        `<p>あらすじ</p><style>body{display:none}</style>`,
			wantAbsent:   []string{"<style", "display:none"},
			wantContains: []string{"あらすじ"},
		},
		{
			name:         "divとspanはタグのみ除去されテキストは残る",
			input:        `<div><span>テキスト</span></div>`,
			wantAbsent:   []string{"<div", "<span"},
			wantContains: []string{"テキスト"},
		},
		{
			name:       "formとinputが除去される",
			input:      `<form action="https://evil.example"><input type="text"></form>`,
			wantAbsent: []string{"<form", "<input"},
		},
		{
			name:       "onclickイベント属性が除去される",
			input:      `<p onclick="steal()">あらすじ</p>`,
			wantAbsent: []string{"onclick", "steal"},
		},
		{
			name:       "img onerrorが除去される",
			input:      `<img src="https://example.com/c.png" onerror="alert(1)">`,
			wantAbsent: []string{"onerror", "alert"},
		},
		{
			name:       "大文字混在のイベント属性も除去される",
			input:      `<p OnMouseOver="alert(1)">あらすじ</p>`,
			wantAbsent: []string{"onmouseover", "alert"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			lower := strings.ToLower(got)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(lower, strings.ToLower(absent)) {
					t.Errorf("Sanitize(%q) = %q, should NOT contain %q", tt.input, got, absent)
				}
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_ImgSchemeRestriction はimg srcがhttpsスキーム以外で
// 拒否されることを検証する。
func TestSanitize_ImgSchemeRestriction(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent string
	}{
		{
			name:       "httpのsrcは拒否される",
			input:      `<img src="http://example.com/cover.jpg">`,
			wantAbsent: "http://example.com/cover.jpg",
		},
		{
			name:       "javascriptスキームは拒否される",
			input:      `<img src="javascript:alert(1)">`,
			wantAbsent: "javascript:",
		},
		{
			name:       "data URIは拒否される",
			input:      `<img src="data:image/png;base64,abc">`,
			wantAbsent: "data:image",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			if strings.Contains(got, tt.wantAbsent) {
				t.Errorf("Sanitize(%q) = %q, should NOT contain %q", tt.input, got, tt.wantAbsent)
			}
		})
	}
}

// TestSanitize_LinkAttributes はaタグへのtarget/rel属性の自動付与を検証する。
func TestSanitize_LinkAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<a href="https://mangadex.org/title/abc" target="_self" rel="nofollow">MangaDex</a>`
	got := sanitizer.Sanitize(input)

	if !strings.Contains(got, `target="_blank"`) {
		t.Errorf("target=\"_blank\" が付与されていない: %q", got)
	}
	if strings.Contains(got, `target="_self"`) {
		t.Errorf("target=\"_self\" が残っている: %q", got)
	}
	if !strings.Contains(got, "noreferrer") {
		t.Errorf("rel=noreferrer が付与されていない: %q", got)
	}
	if !strings.Contains(got, "https://mangadex.org/title/abc") {
		t.Errorf("hrefが保持されていない: %q", got)
	}
}

// TestSanitize_PlainTextAndEmpty はタグを含まない入力の扱いを検証する。
func TestSanitize_PlainTextAndEmpty(t *testing.T) {
	sanitizer := NewContentSanitizer()

	if got := sanitizer.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, expected empty string", got)
	}

	plain := "タグを含まないプレーンなあらすじです。"
	if got := sanitizer.Sanitize(plain); got != plain {
		t.Errorf("Sanitize(%q) = %q, expected unchanged", plain, got)
	}
}

// TestSanitize_Idempotent は二重サニタイズで結果が変わらないことを検証する。
// 登録時にサニタイズ済みの説明文が更新時に再サニタイズされるため、
// 冪等でないと保存内容が揺れて偽の更新検出につながる。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<p>あらすじ<strong>重要</strong></p><a href="https://anilist.co/manga/1">AniList</a>`

	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(first)

	if first != second {
		t.Errorf("二重サニタイズで結果が変わった: 1回目=%q, 2回目=%q", first, second)
	}
}

// TestSanitize_AniListDescription はAniListが返す形式の説明文を
// まとめてサニタイズできることを検証する。
func TestSanitize_AniListDescription(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `The student council president Miyuki and vice president Kaguya...<br><br>
<i>(Source: Viz Media)</i>
<script>document.cookie</script>
<img src="https://s4.anilist.co/file/cover.jpg" alt="cover" onload="alert(1)">`

	got := sanitizer.Sanitize(input)

	for _, want := range []string{"<br>", "<i>(Source: Viz Media)</i>", "https://s4.anilist.co/file/cover.jpg"} {
		if !strings.Contains(got, want) {
			t.Errorf("結果に %q が含まれていない: %q", want, got)
		}
	}
	for _, absent := range []string{"<script", "document.cookie", "onload"} {
		if strings.Contains(got, absent) {
			t.Errorf("結果に禁止要素 %q が含まれている: %q", absent, got)
		}
	}
}

func TestContentSanitizerInterface(t *testing.T) {
	var _ ContentSanitizerService = NewContentSanitizer()
}
