package server

import "encoding/json"

// Envelope 线上消息封装（WebSocket 文本 JSON）
// 示例：{"type":"submit_path","seq":3,"data":{"path":[{"row":2,"col":1}]}}
// seq 仅在需要应答的请求上携带，应答以 {"type":"ack","seq":3,...} 返回
type Envelope struct {
	Type string          `json:"type"`
	Seq  int64           `json:"seq,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// AuthPayload 可选的身份凭据
type AuthPayload struct {
	AccessToken string `json:"accessToken,omitempty"`
}

// JoinPayload create_room / join_ai / join_room / join_random 的入参
// join_room 之外 Code 为空
type JoinPayload struct {
	Code     string       `json:"code,omitempty"`
	Nickname string       `json:"nickname"`
	Auth     *AuthPayload `json:"auth,omitempty"`
}

// PathPayload path_update / submit_path 的入参
type PathPayload struct {
	Path []Position `json:"path"`
}

// ChatPayload chat_send 的入参
type ChatPayload struct {
	Message string `json:"message"`
}

// AccountSyncPayload account_sync 的入参
type AccountSyncPayload struct {
	Auth *AuthPayload `json:"auth"`
}

// AckOK submit_path 的应答
type AckOK struct {
	OK bool `json:"ok"`
}

// AccountSyncAck account_sync 的应答
type AccountSyncAck struct {
	Status  AccountStatus `json:"status"`
	Profile *Profile      `json:"profile,omitempty"`
}
