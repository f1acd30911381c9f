package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCodeShape(t *testing.T) {
	store := NewRoomStore()
	for i := 0; i < 100; i++ {
		code := store.GenerateCode()
		require.Len(t, code, codeLength)
		for _, ch := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, ch), "char %q outside alphabet", ch)
		}
	}
}

func TestLookupByCodeCaseInsensitive(t *testing.T) {
	store := NewRoomStore()
	sched, _ := newMockScheduler()
	room := NewGameRoom("room_1", "ABC234", MatchFriend, sched, DefaultPacing(), NewMetrics(), GuestDirectory{})
	store.Add(room)

	assert.Same(t, room, store.ByCode("ABC234"))
	assert.Same(t, room, store.ByCode("abc234"))
	assert.Nil(t, store.ByCode("ZZZZZZ"))
	assert.Same(t, room, store.ByID("room_1"))
	assert.Nil(t, store.ByID("room_404"))
}

func TestMatchQueueFIFO(t *testing.T) {
	store := NewRoomStore()
	a := &fakeSession{id: "a"}
	b := &fakeSession{id: "b"}
	store.EnqueueRandom(QueueEntry{Session: a, Nickname: "A"})
	store.EnqueueRandom(QueueEntry{Session: b, Nickname: "B"})

	first, ok := store.DequeueRandom()
	require.True(t, ok)
	assert.Equal(t, "a", first.Session.ID())
	second, ok := store.DequeueRandom()
	require.True(t, ok)
	assert.Equal(t, "b", second.Session.ID())
	_, ok = store.DequeueRandom()
	assert.False(t, ok)
}

func TestRemoveFromQueue(t *testing.T) {
	store := NewRoomStore()
	for _, id := range []string{"a", "b", "c"} {
		store.EnqueueRandom(QueueEntry{Session: &fakeSession{id: id}})
	}
	store.RemoveFromQueue("b")
	assert.Equal(t, 2, store.QueueLen())

	first, _ := store.DequeueRandom()
	second, _ := store.DequeueRandom()
	assert.Equal(t, "a", first.Session.ID())
	assert.Equal(t, "c", second.Session.ID())
}

func TestRemoveSessionTearsDownHumanlessRoom(t *testing.T) {
	store := NewRoomStore()
	sched, _ := newMockScheduler()
	room := NewGameRoom("room_ai", "AICODE", MatchAI, sched, DefaultPacing(), NewMetrics(), GuestDirectory{})
	human := &fakeSession{id: "sess-h"}
	room.AddPlayer(human, Profile{Nickname: "H"})
	room.AddAiPlayer("bot")
	store.Add(room)
	store.RegisterSession("sess-h", room.RoomID)

	// 人类离开后房间只剩机器人，注册表就地拆除
	got := store.RemoveSession("sess-h")
	require.NotNil(t, got)
	assert.Nil(t, store.ByID("room_ai"))
	assert.Nil(t, store.ByCode("AICODE"))
	assert.Equal(t, 0, store.RoomCount())
}

func TestRemoveSessionKeepsRoomWithRemainingHuman(t *testing.T) {
	store := NewRoomStore()
	sched, _ := newMockScheduler()
	room := NewGameRoom("room_2", "KEEPME", MatchFriend, sched, DefaultPacing(), NewMetrics(), GuestDirectory{})
	a := &fakeSession{id: "sess-a"}
	b := &fakeSession{id: "sess-b"}
	room.AddPlayer(a, Profile{Nickname: "A"})
	room.AddPlayer(b, Profile{Nickname: "B"})
	store.Add(room)
	store.RegisterSession("sess-a", room.RoomID)
	store.RegisterSession("sess-b", room.RoomID)

	got := store.RemoveSession("sess-a")
	require.Same(t, room, got)
	assert.Same(t, room, store.ByID("room_2"))
	assert.Equal(t, 1, room.PlayerCount())

	got = store.RemoveSession("sess-b")
	require.Same(t, room, got)
	assert.Nil(t, store.ByID("room_2"))
}

func TestRemoveSessionUnknownIsNoOp(t *testing.T) {
	store := NewRoomStore()
	assert.Nil(t, store.RemoveSession("ghost"))
}

func TestNewRoomIDPrefix(t *testing.T) {
	store := NewRoomStore()
	id1 := store.NewRoomID()
	id2 := store.NewRoomID()
	assert.True(t, strings.HasPrefix(id1, "room_"))
	assert.NotEqual(t, id1, id2)
}
