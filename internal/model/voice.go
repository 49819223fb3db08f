package model

import "time"

// VoiceEventKind はボイスチャンネルの状態遷移イベントの種別を表す。
type VoiceEventKind string

const (
	// VoiceEventJoin はボイスチャンネルへの参加を示す。
	VoiceEventJoin VoiceEventKind = "join"
	// VoiceEventMove はボイスチャンネル間の移動を示す。
	VoiceEventMove VoiceEventKind = "move"
	// VoiceEventLeave はボイスチャンネルからの退出を示す。
	VoiceEventLeave VoiceEventKind = "leave"
)

// VoiceEvent は外部のボットシェルから届くボイス状態イベントを表す。
// moveの場合、ChannelIDは移動先のチャンネルを指す。
type VoiceEvent struct {
	Kind      VoiceEventKind `json:"kind"`
	UserID    int64          `json:"user_id"`
	GuildID   int64          `json:"guild_id"`
	ChannelID int64          `json:"channel_id"`
	Timestamp time.Time      `json:"timestamp"`
}

// VoiceSession はユーザーの1回の連続したボイスチャンネル滞在を表す。
// leave_time == join_time の行がアクティブ（滞在中）セッション。
// クローズ済みセッションは leave_time > join_time を満たす。
// (user_id, channel_id) ごとにアクティブセッションは最大1つ。
type VoiceSession struct {
	ID        string
	UserID    int64
	GuildID   int64
	ChannelID int64
	JoinTime  time.Time
	LeaveTime time.Time
}

// IsActive はセッションがアクティブ（滞在中）かどうかを返す。
func (s *VoiceSession) IsActive() bool {
	return s.LeaveTime.Equal(s.JoinTime)
}

// LeaderboardEntry はギルド内のユーザーごとの合計滞在時間を表す。
type LeaderboardEntry struct {
	UserID        int64 `json:"user_id"`
	TotalDuration int64 `json:"total_duration"` // 合計滞在秒数
}

// LeaderboardOptions はリーダーボード集計の条件を表す。
// SinceとUntilはnilの場合フィルタしない。
type LeaderboardOptions struct {
	GuildID int64
	Since   *time.Time
	Until   *time.Time
	Offset  int
	Limit   int
}
