package model

// MetaKey はbot_metaテーブルのキーを表す。
type MetaKey string

const (
	// MetaKeyVoiceHeartbeat はボイストラッキングのハートビートタイムスタンプ（RFC3339）のキー。
	MetaKeyVoiceHeartbeat MetaKey = "voice_heartbeat"
	// MetaKeyBotVersion は起動時に記録されるアプリケーションバージョンのキー。
	MetaKeyBotVersion MetaKey = "bot_version"
)
