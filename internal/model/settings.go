package model

// FeedsSettings はギルドごとのフィード通知設定を表す。
// nilのフィールドは未設定（デフォルト動作）を意味する。
type FeedsSettings struct {
	Enabled           *bool   `json:"enabled,omitempty"`
	ChannelID         *string `json:"channel_id,omitempty"`
	SubscribeRoleID   *string `json:"subscribe_role_id,omitempty"`
	UnsubscribeRoleID *string `json:"unsubscribe_role_id,omitempty"`
}

// VoiceSettings はギルドごとのボイストラッキング設定を表す。
// Enabledがnilまたはtrueの場合トラッキングは有効（デフォルト有効）。
type VoiceSettings struct {
	Enabled *bool `json:"enabled,omitempty"`
}

// ServerSettings はギルドごとの設定の集合を表す。
// server_settingsテーブルにJSONとして保存される。
type ServerSettings struct {
	Feeds FeedsSettings `json:"feeds"`
	Voice VoiceSettings `json:"voice"`
}

// VoiceTrackingEnabled はボイストラッキングが有効かどうかを返す。
// 明示的にfalseが設定されている場合のみ無効。
func (s *ServerSettings) VoiceTrackingEnabled() bool {
	return s.Voice.Enabled == nil || *s.Voice.Enabled
}
