package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// outbound 出站封装；Seq 仅应答帧携带
type outbound struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq,omitempty"`
	Data any    `json:"data,omitempty"`
}

// ClientConn 会话连接：读写泵 + 缓冲发送队列
type ClientConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	once sync.Once
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, 64),
	}
}

// ID 会话唯一标识
func (c *ClientConn) ID() string { return c.id }

// Send 发送事件（非阻塞，队列满则丢弃，防止阻塞事件循环）
func (c *ClientConn) Send(event string, data any) {
	c.enqueue(outbound{Type: event, Data: data})
}

// Ack 应答带 seq 的请求
func (c *ClientConn) Ack(seq int64, data any) {
	c.enqueue(outbound{Type: "ack", Seq: seq, Data: data})
}

func (c *ClientConn) enqueue(msg outbound) {
	b, err := json.Marshal(msg)
	if err != nil {
		Log.Warnf("marshal outbound failed: type=%s err=%v", msg.Type, err)
		return
	}
	select {
	case c.send <- b:
	default:
		// 为了实时性丢弃，慢客户端不拖累其他会话
		Log.Debugf("send queue full, dropped: session=%s type=%s", c.id, msg.Type)
	}
}

// Close 关闭发送队列与底层连接
func (c *ClientConn) Close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.ws.Close()
	})
}

// writePump 独立协程，负责从 send 队列写出到 WS
func (c *ClientConn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump 读取客户端消息，解析后交给 Gate 调度；退出即视为断线
func (c *ClientConn) readPump(gate *Gate) {
	defer c.ws.Close()
	defer gate.Disconnect(c)
	c.ws.SetReadLimit(1 << 16) // 64KB，路径消息很小
	_ = c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			continue
		}
		if env.Type == "" {
			continue
		}
		gate.Dispatch(c, env)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入点
func (g *Gate) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}
	client := NewClientConn(ws)
	Log.Infof("session connected: %s", client.ID())

	go client.writePump()
	go client.readPump(g)
}
