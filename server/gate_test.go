package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testGate 处理方法直接调用（等价于闭包已在事件循环中执行）
func testGate(t *testing.T) *Gate {
	t.Helper()
	sched, _ := newMockScheduler()
	return NewGate(NewLoop(), sched, NewRoomStore(), GuestDirectory{}, GuestDirectory{}, NewMetrics())
}

func testGateWithClock(t *testing.T) (*Gate, func()) {
	t.Helper()
	sched, mock := newMockScheduler()
	g := NewGate(NewLoop(), sched, NewRoomStore(), GuestDirectory{}, GuestDirectory{}, NewMetrics())
	return g, func() { mock.Add(g.pacing.StartDelay + g.pacing.AIStartDelay) }
}

func TestCreateRoomRegistersAndAnswers(t *testing.T) {
	g := testGate(t)
	sess := &fakeSession{id: "s1"}
	g.handleJoin(sess, "create_room", "", Profile{Nickname: "Alice"})

	require.Equal(t, 1, sess.countOf("room_created"))
	data, _ := sess.last("room_created")
	payload := data.(struct {
		RoomID string      `json:"roomId"`
		Code   string      `json:"code"`
		Color  PlayerColor `json:"color"`
	})
	assert.Equal(t, ColorRed, payload.Color)
	assert.Len(t, payload.Code, codeLength)
	assert.Same(t, g.store.ByCode(payload.Code), g.store.BySession("s1"))
}

func TestJoinRoomUnknownCode(t *testing.T) {
	g := testGate(t)
	sess := &fakeSession{id: "s1"}
	g.handleJoin(sess, "join_room", "NOPE42", Profile{Nickname: "Bob"})
	assert.Equal(t, 1, sess.countOf("join_error"))
	assert.Nil(t, g.store.BySession("s1"))
}

func TestJoinRoomPairsAndStarts(t *testing.T) {
	g, advance := testGateWithClock(t)
	creator := &fakeSession{id: "s1"}
	joiner := &fakeSession{id: "s2"}

	g.handleJoin(creator, "create_room", "", Profile{Nickname: "Alice"})
	data, _ := creator.last("room_created")
	code := data.(struct {
		RoomID string      `json:"roomId"`
		Code   string      `json:"code"`
		Color  PlayerColor `json:"color"`
	}).Code

	g.handleJoin(joiner, "join_room", code, Profile{Nickname: "Bob"})
	assert.Equal(t, 1, joiner.countOf("room_joined"))
	assert.Equal(t, 1, creator.countOf("opponent_joined"))

	// 延迟开局
	assert.Zero(t, creator.countOf("game_start"))
	advance()
	assert.Equal(t, 1, creator.countOf("game_start"))
	assert.Equal(t, 1, joiner.countOf("game_start"))

	// 第三人再进：满员
	third := &fakeSession{id: "s3"}
	g.handleJoin(third, "join_room", code, Profile{Nickname: "Eve"})
	assert.Equal(t, 1, third.countOf("join_error"))
}

func TestJoinAIStartsAgainstBot(t *testing.T) {
	g, advance := testGateWithClock(t)
	sess := &fakeSession{id: "s1"}
	g.handleJoin(sess, "join_ai", "", Profile{Nickname: "Solo"})

	require.Equal(t, 1, sess.countOf("room_joined"))
	data, _ := sess.last("room_joined")
	payload := data.(struct {
		RoomID           string      `json:"roomId"`
		Color            PlayerColor `json:"color"`
		OpponentNickname string      `json:"opponentNickname"`
	})
	assert.Equal(t, ColorRed, payload.Color)
	assert.Equal(t, "PathClash AI", payload.OpponentNickname)

	advance()
	assert.Equal(t, 1, sess.countOf("game_start"))
	assert.Equal(t, 1, sess.countOf("round_start"))
}

func TestJoinRandomQueuesThenPairs(t *testing.T) {
	g, advance := testGateWithClock(t)
	first := &fakeSession{id: "s1"}
	second := &fakeSession{id: "s2"}

	g.handleJoin(first, "join_random", "", Profile{Nickname: "One"})
	assert.Equal(t, 1, first.countOf("matchmaking_waiting"))
	assert.Equal(t, 1, g.store.QueueLen())

	// 同一会话重复排队不与自己成局
	g.handleJoin(first, "join_random", "", Profile{Nickname: "One"})
	assert.Equal(t, 2, first.countOf("matchmaking_waiting"))

	g.handleJoin(second, "join_random", "", Profile{Nickname: "Two"})
	assert.Equal(t, 1, first.countOf("room_joined"))
	assert.Equal(t, 1, second.countOf("room_joined"))

	fdata, _ := first.last("room_joined")
	assert.Equal(t, ColorRed, fdata.(struct {
		RoomID           string      `json:"roomId"`
		Color            PlayerColor `json:"color"`
		OpponentNickname string      `json:"opponentNickname"`
	}).Color)

	advance()
	assert.Equal(t, 1, first.countOf("game_start"))
	assert.Equal(t, 1, second.countOf("game_start"))
}

func TestCancelRandomLeavesQueue(t *testing.T) {
	g := testGate(t)
	sess := &fakeSession{id: "s1"}
	g.handleJoin(sess, "join_random", "", Profile{Nickname: "One"})
	require.Equal(t, 1, g.store.QueueLen())

	g.handleRoomEvent(sess, Envelope{Type: "cancel_random"})
	assert.Zero(t, g.store.QueueLen())
}

func TestSubmitPathAcksFalseWithoutRoom(t *testing.T) {
	g := testGate(t)
	sess := &fakeSession{id: "ghost"}
	g.handleRoomEvent(sess, Envelope{Type: "submit_path", Seq: 7})

	require.Len(t, sess.acks, 1)
	assert.Equal(t, AckOK{OK: false}, sess.acks[0].data)
}

func TestDisconnectNotifiesSurvivorAndTearsDown(t *testing.T) {
	g, advance := testGateWithClock(t)
	creator := &fakeSession{id: "s1"}
	joiner := &fakeSession{id: "s2"}
	g.handleJoin(creator, "create_room", "", Profile{Nickname: "Alice"})
	data, _ := creator.last("room_created")
	code := data.(struct {
		RoomID string      `json:"roomId"`
		Code   string      `json:"code"`
		Color  PlayerColor `json:"color"`
	}).Code
	g.handleJoin(joiner, "join_room", code, Profile{Nickname: "Bob"})
	advance()

	g.handleDisconnect(joiner)
	assert.Equal(t, 1, creator.countOf("opponent_disconnected"))
	assert.NotNil(t, g.store.BySession("s1"), "survivor keeps the room")

	g.handleDisconnect(creator)
	assert.Zero(t, g.store.RoomCount())
}

func TestDisconnectDropsFromQueue(t *testing.T) {
	g := testGate(t)
	sess := &fakeSession{id: "s1"}
	g.handleJoin(sess, "join_random", "", Profile{Nickname: "One"})
	require.Equal(t, 1, g.store.QueueLen())

	g.handleDisconnect(sess)
	assert.Zero(t, g.store.QueueLen())
}

func TestAccountSyncGuestDirectory(t *testing.T) {
	g := testGate(t)
	sess := &fakeSession{id: "s1"}

	g.handleAccountSync(sess, 1, nil)
	require.Len(t, sess.acks, 1)
	assert.Equal(t, AccountSyncAck{Status: AuthRequired}, sess.acks[0].data)

	g.handleAccountSync(sess, 2, &AuthPayload{AccessToken: "tok"})
	require.Len(t, sess.acks, 2)
	assert.Equal(t, AccountSyncAck{Status: AuthInvalid}, sess.acks[1].data)
}

func TestNormalizeNickname(t *testing.T) {
	assert.Equal(t, "Guest", normalizeNickname(""))
	assert.Equal(t, "short", normalizeNickname("short"))
	assert.Equal(t, "aaaaaaaaaaaaaaaa", normalizeNickname("aaaaaaaaaaaaaaaaaaaaaa"))
}
