package server

import "context"

// Profile 对局使用的玩家档案；访客 AccountID 为 nil
type Profile struct {
	AccountID *string     `json:"accountId"`
	Nickname  string      `json:"nickname"`
	Stats     PlayerStats `json:"stats"`
}

// AccountStatus account_sync 应答状态
type AccountStatus string

const (
	AccountOK    AccountStatus = "ACCOUNT_OK"
	AuthRequired AccountStatus = "AUTH_REQUIRED"
	AuthInvalid  AccountStatus = "AUTH_INVALID"
)

// ProfileResolver 外部身份协作方：令牌 → 档案
// 失败或无令牌一律降级为访客档案，绝不阻断对局流程
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, accessToken, fallbackNickname string) (Profile, error)
	ResolveAccount(ctx context.Context, accessToken string) (AccountStatus, *Profile, error)
}

// ResultRecorder 外部赛果持久化协作方
type ResultRecorder interface {
	RecordResult(ctx context.Context, winnerID, loserID string) error
}

// GuestDirectory 默认实现：无后端，全部按访客处理
type GuestDirectory struct{}

func (GuestDirectory) ResolveProfile(_ context.Context, _ string, fallbackNickname string) (Profile, error) {
	return Profile{Nickname: fallbackNickname}, nil
}

func (GuestDirectory) ResolveAccount(_ context.Context, accessToken string) (AccountStatus, *Profile, error) {
	if accessToken == "" {
		return AuthRequired, nil, nil
	}
	return AuthInvalid, nil, nil
}

func (GuestDirectory) RecordResult(_ context.Context, _, _ string) error { return nil }

// normalizeNickname 截断到 16 字符，空则回退 "Guest"
func normalizeNickname(nickname string) string {
	runes := []rune(nickname)
	if len(runes) > 16 {
		runes = runes[:16]
	}
	if len(runes) == 0 {
		return "Guest"
	}
	return string(runes)
}
