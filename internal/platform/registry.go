package platform

import "strings"

// Registry は登録済みプラットフォームを保持し、URLから担当アダプタを解決する。
type Registry struct {
	platforms []Platform
	fallback  Platform
}

// NewRegistry はRegistryを生成する。
func NewRegistry(platforms ...Platform) *Registry {
	return &Registry{platforms: platforms}
}

// SetFallback はどのプラットフォームにもマッチしないURLを処理する
// フォールバックアダプタ（汎用RSS）を登録する。
func (r *Registry) SetFallback(p Platform) {
	r.fallback = p
}

// All は登録済みの全プラットフォームを返す。フォールバックも末尾に含む。
func (r *Registry) All() []Platform {
	out := make([]Platform, 0, len(r.platforms)+1)
	out = append(out, r.platforms...)
	if r.fallback != nil {
		out = append(out, r.fallback)
	}
	return out
}

// ByID は指定IDのプラットフォームを返す。見つからない場合はnil。
func (r *Registry) ByID(id string) Platform {
	for _, p := range r.All() {
		if p.Info().ID == id {
			return p
		}
	}
	return nil
}

// BySourceURL はURLのドメインから担当プラットフォームを解決する。
// APIのベースURLにドメインが含まれるプラットフォームが担当となる。
// どれにもマッチしない場合、フォールバックがあればそれを返し、
// なければUnsupportedURLを返す。
func (r *Registry) BySourceURL(rawURL string) (Platform, error) {
	domain := ExtractDomain(rawURL)
	if domain != "" {
		for _, p := range r.platforms {
			if strings.Contains(p.Info().APIURL, domain) {
				return p, nil
			}
		}
	}
	if r.fallback != nil {
		if _, err := r.fallback.IDFromSourceURL(rawURL); err == nil {
			return r.fallback, nil
		}
	}
	return nil, NewUnsupportedURLError(rawURL)
}

// ExtractDomain はURLからドメイン部分（スキームとパスを除いたホスト）を抽出する。
// "www."プレフィックスは取り除く。抽出できない場合は空文字を返す。
func ExtractDomain(rawURL string) string {
	s := rawURL
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "www.")
	return s
}
