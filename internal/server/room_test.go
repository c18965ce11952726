package server

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vegas-server/internal/protocol"
	"vegas-server/internal/vegas"
)

type sent struct {
	connectionID string
	msg          protocol.ServerMessage
}

// recordingSender captures every message a room delivers.
type recordingSender struct {
	mu   sync.Mutex
	msgs []sent
}

func (s *recordingSender) Send(connectionID string, msg protocol.ServerMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, sent{connectionID, msg})
	return nil
}

func (s *recordingSender) typesFor(connectionID string) []protocol.MessageType {
	s.mu.Lock()
	defer s.mu.Unlock()
	var types []protocol.MessageType
	for _, m := range s.msgs {
		if m.connectionID == connectionID {
			types = append(types, m.msg.Type)
		}
	}
	return types
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs map[string][]protocol.MessageType
}

func (p *recordingPublisher) Publish(roomID string, msg protocol.ServerMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.msgs == nil {
		p.msgs = make(map[string][]protocol.MessageType)
	}
	p.msgs[roomID] = append(p.msgs[roomID], msg.Type)
	return nil
}

func (p *recordingPublisher) Close() {}

func newTestRoom(sender Sender, opts ...vegas.Option) *Room {
	return newRoom("TEST", roomDeps{
		sender:   sender,
		gameOpts: append([]vegas.Option{vegas.WithUnshuffledCards()}, opts...),
	})
}

// seatPlayers adds n ready players with distinct tokens; player i is "p<i>"
// on connection "c<i>".
func seatPlayers(t *testing.T, r *Room, n int) {
	t.Helper()
	tokens := vegas.Tokens()
	for i := range n {
		id := fmt.Sprintf("p%d", i)
		require.NoError(t, r.AddPlayer(id, fmt.Sprintf("Player %d", i), fmt.Sprintf("c%d", i)))
		require.NoError(t, r.SelectToken(id, tokens[i]))
		require.NoError(t, r.SetReady(id, true))
	}
}

func startedRoom(t *testing.T, sender Sender, n int, opts ...vegas.Option) *Room {
	t.Helper()
	r := newTestRoom(sender, opts...)
	seatPlayers(t, r, n)
	require.NoError(t, r.StartGame("p0"))
	return r
}

func TestRoom_FirstSeatIsHost(t *testing.T) {
	r := newTestRoom(nil)
	require.NoError(t, r.AddPlayer("p0", "Alice", "c0"))
	require.NoError(t, r.AddPlayer("p1", "Bob", "c1"))

	assert.Equal(t, "p0", r.HostID())
	info := r.Snapshot()
	assert.True(t, info.Players[0].IsHost)
	assert.False(t, info.Players[1].IsHost)
}

// Why: a reconnect must never create a second seat for the same player
func TestRoom_AddPlayerIsIdempotent(t *testing.T) {
	assert := assert.New(t)
	r := newTestRoom(nil)

	require.NoError(t, r.AddPlayer("p0", "Alice", "c0"))
	require.NoError(t, r.AddPlayer("p0", "Alice", "c0-new"))

	assert.Equal(1, r.PlayerCount())
	assert.True(r.Connectivity().Players["p0"])
	assert.False(r.DetachConnection("p0", "c0"), "the old connection no longer owns the seat")
	assert.True(r.DetachConnection("p0", "c0-new"))
}

func TestRoom_RoomFull(t *testing.T) {
	r := newTestRoom(nil)
	seatPlayers(t, r, MaxPlayers)

	err := r.AddPlayer("p4", "Eve", "c4")
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, MaxPlayers, r.PlayerCount())
}

func TestRoom_TokenUniqueness(t *testing.T) {
	assert := assert.New(t)
	r := newTestRoom(nil)
	require.NoError(t, r.AddPlayer("p0", "Alice", "c0"))
	require.NoError(t, r.AddPlayer("p1", "Bob", "c1"))

	assert.NoError(r.SelectToken("p0", "dice"))
	assert.ErrorIs(r.SelectToken("p1", "dice"), ErrTokenTaken)
	assert.NoError(r.SelectToken("p0", "dice"), "re-selecting your own token is a no-op")

	assert.NoError(r.SelectToken("p0", ""), "an empty token clears the selection")
	assert.NoError(r.SelectToken("p1", "dice"))

	assert.ErrorIs(r.SelectToken("p0", "spaceship"), vegas.ErrInvalidToken)
	assert.ErrorIs(r.SelectToken("ghost", "chip"), ErrPlayerNotFound)

	held := map[string]int{}
	for _, s := range r.Snapshot().Players {
		if s.Token != "" {
			held[s.Token]++
		}
	}
	for token, n := range held {
		assert.Equal(1, n, "token %s held more than once", token)
	}
}

func TestRoom_CanStart(t *testing.T) {
	tests := []struct {
		name       string
		qualifying int
		extra      func(r *Room)
		want       bool
	}{
		{name: "empty", qualifying: 0, want: false},
		{name: "one", qualifying: 1, want: false},
		{name: "two", qualifying: 2, want: true},
		{name: "four", qualifying: 4, want: true},
		{
			name:       "ready without token does not count",
			qualifying: 1,
			extra: func(r *Room) {
				r.AddPlayer("x", "NoToken", "cx")
				r.SetReady("x", true)
			},
			want: false,
		},
		{
			name:       "token without ready does not count",
			qualifying: 1,
			extra: func(r *Room) {
				r.AddPlayer("x", "NotReady", "cx")
				r.SelectToken("x", "flamingo")
			},
			want: false,
		},
		{
			name:       "unready seats do not block",
			qualifying: 2,
			extra: func(r *Room) {
				r.AddPlayer("x", "Lurker", "cx")
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRoom(nil)
			seatPlayers(t, r, tt.qualifying)
			if tt.extra != nil {
				tt.extra(r)
			}
			assert.Equal(t, tt.want, r.CanStart())
			assert.Equal(t, tt.want, r.Snapshot().CanStart)
		})
	}
}

func TestRoom_StartGameRejections(t *testing.T) {
	assert := assert.New(t)
	r := newTestRoom(nil)
	seatPlayers(t, r, 1)
	require.NoError(t, r.AddPlayer("p1", "Bob", "c1"))

	assert.ErrorIs(r.StartGame("p1"), ErrNotHost)
	assert.ErrorIs(r.StartGame("p0"), ErrCannotStart)
	assert.ErrorIs(r.StartGame("ghost"), ErrPlayerNotFound)

	require.NoError(t, r.SelectToken("p1", "chip"))
	require.NoError(t, r.SetReady("p1", true))
	require.NoError(t, r.StartGame("p0"))

	assert.ErrorIs(r.StartGame("p0"), ErrGameAlreadyStarted)
	assert.ErrorIs(r.AddPlayer("late", "Late", "cl"), ErrGameAlreadyStarted)
	assert.ErrorIs(r.SelectToken("p0", "slot"), ErrGameAlreadyStarted)
}

// Scenario A at the room level: two seated, ready players with distinct
// tokens start a game whose turn order is the join order.
func TestRoom_StartGameFreezesJoinOrder(t *testing.T) {
	assert := assert.New(t)
	sender := &recordingSender{}
	r := newTestRoom(sender)
	seatPlayers(t, r, 2)
	require.NoError(t, r.AddPlayer("watcher", "Unready", "cw"))

	require.NoError(t, r.StartGame("p0"))

	assert.Equal(protocol.StatusPlaying, r.Status())
	state, ok := r.GameState()
	require.True(t, ok)
	require.Len(t, state.Players, 2, "only ready seats with a token play")
	assert.Equal("p0", state.Players[0].ID)
	assert.Equal("p1", state.Players[1].ID)
	assert.Equal(0, state.CurrentPlayerIndex)
	assert.Equal("p0", state.CurrentPlayerID)

	for _, conn := range []string{"c0", "c1", "cw"} {
		assert.Contains(sender.typesFor(conn), protocol.TypeGameStarted, "connection %s", conn)
	}
}

func TestRoom_ApplyActionBroadcastsEvent(t *testing.T) {
	assert := assert.New(t)
	sender := &recordingSender{}
	pub := &recordingPublisher{}
	r := newRoom("TEST", roomDeps{
		sender:    sender,
		publisher: pub,
		gameOpts:  []vegas.Option{vegas.WithDice(vegas.NewFixedDice([2]int{2, 3}))},
	})
	seatPlayers(t, r, 2)
	require.NoError(t, r.StartGame("p0"))

	ev, err := r.ApplyAction("p0", vegas.Action{Type: vegas.ActionRollDice})
	require.NoError(t, err)
	rolled, ok := ev.(*vegas.DiceRolled)
	require.True(t, ok)
	assert.Equal(5, rolled.NewPosition)
	assert.False(rolled.PassedGo)

	assert.Contains(sender.typesFor("c1"), protocol.TypeDiceRolled)
	assert.Contains(pub.msgs["TEST"], protocol.TypeDiceRolled, "broadcasts are mirrored to the room channel")
}

func TestRoom_ApplyActionRejections(t *testing.T) {
	assert := assert.New(t)
	r := newTestRoom(nil)
	seatPlayers(t, r, 2)

	_, err := r.ApplyAction("p0", vegas.Action{Type: vegas.ActionRollDice})
	assert.ErrorIs(err, ErrGameNotStarted)

	require.NoError(t, r.StartGame("p0"))
	before, _ := r.GameState()

	_, err = r.ApplyAction("p1", vegas.Action{Type: vegas.ActionRollDice})
	assert.ErrorIs(err, vegas.ErrNotYourTurn)

	after, _ := r.GameState()
	assert.Equal(before.GameState.Players[1].Position, after.GameState.Players[1].Position)
	assert.Equal(before.CurrentPlayerID, after.CurrentPlayerID)
}

func TestRoom_BankruptcyFinishesGame(t *testing.T) {
	assert := assert.New(t)
	sender := &recordingSender{}
	r := startedRoom(t, sender, 2)

	_, err := r.ApplyAction("p0", vegas.Action{Type: vegas.ActionDeclareBankruptcy})
	require.NoError(t, err)

	assert.Equal(protocol.StatusFinished, r.Status())
	assert.Contains(sender.typesFor("c1"), protocol.TypeGameOver)

	_, err = r.ApplyAction("p1", vegas.Action{Type: vegas.ActionRollDice})
	assert.ErrorIs(err, vegas.ErrGameOver)
}

// Why: removing the host must leave exactly one host, the earliest remaining seat
func TestRoom_HostFailover(t *testing.T) {
	assert := assert.New(t)
	r := newTestRoom(nil)
	seatPlayers(t, r, 3)

	empty, err := r.RemovePlayer("p0")
	assert.NoError(err)
	assert.False(empty)
	assert.Equal("p1", r.HostID())

	hosts := 0
	for _, s := range r.Snapshot().Players {
		if s.IsHost {
			hosts++
		}
	}
	assert.Equal(1, hosts)

	_, err = r.RemovePlayer("p0")
	assert.ErrorIs(err, ErrPlayerNotFound)
}

func TestRoom_RemovePlayerEmptiesRoom(t *testing.T) {
	r := newTestRoom(nil)
	require.NoError(t, r.AddPlayer("p0", "Alice", "c0"))

	empty, err := r.RemovePlayer("p0")
	assert.NoError(t, err)
	assert.True(t, empty)
	assert.Empty(t, r.HostID())
}

func TestRoom_LeavingDuringGameEliminates(t *testing.T) {
	assert := assert.New(t)
	sender := &recordingSender{}
	r := startedRoom(t, sender, 3)

	_, err := r.RemovePlayer("p0")
	require.NoError(t, err)

	state, _ := r.GameState()
	assert.True(state.GameState.Player("p0").Bankrupt)
	assert.Equal("p1", state.CurrentPlayerID, "the turn passes on when the current player leaves")
	assert.Equal(protocol.StatusPlaying, r.Status())
	assert.Contains(sender.typesFor("c1"), protocol.TypePlayerBankrupt)

	_, err = r.RemovePlayer("p1")
	require.NoError(t, err)
	assert.Equal(protocol.StatusFinished, r.Status())
	state, _ = r.GameState()
	assert.Equal("p2", state.GameState.WinnerID)
}

func TestRoom_DepartInLobbyRemovesSeat(t *testing.T) {
	r := newTestRoom(nil)
	seatPlayers(t, r, 2)

	assert.Equal(t, DepartNone, r.Depart("p1", "stale"), "a stale connection changes nothing")
	assert.Equal(t, DepartRemoved, r.Depart("p1", "c1"))
	assert.False(t, r.HasSeat("p1"))
}

// Scenario E at the room level: the seat stays, connection-less, and a
// rejoin reattaches it without duplicating it.
func TestRoom_DepartDuringGameDetaches(t *testing.T) {
	assert := assert.New(t)
	r := startedRoom(t, nil, 2)

	assert.Equal(DepartDetached, r.Depart("p1", "c1"))
	assert.True(r.HasSeat("p1"))
	assert.False(r.Connectivity().Players["p1"])

	require.NoError(t, r.AddPlayer("p1", "", "c1-again"))
	assert.Equal(2, r.PlayerCount())
	assert.True(r.Connectivity().Players["p1"])
}

func TestRoom_SweepDisconnected(t *testing.T) {
	assert := assert.New(t)
	r := newTestRoom(nil)
	seatPlayers(t, r, 3)
	r.DetachConnection("p0", "c0")
	r.DetachConnection("p2", "c2")

	removed, empty := r.SweepDisconnected()
	assert.ElementsMatch([]string{"p0", "p2"}, removed)
	assert.False(empty)
	assert.Equal("p1", r.HostID())

	r.DetachConnection("p1", "c1")
	_, empty = r.SweepDisconnected()
	assert.True(empty)
}

func TestRoom_SweepLeavesStartedGames(t *testing.T) {
	r := startedRoom(t, nil, 2)
	r.Depart("p0", "c0")
	r.Depart("p1", "c1")

	removed, empty := r.SweepDisconnected()
	assert.Empty(t, removed)
	assert.False(t, empty)
	assert.False(t, r.Abandoned(), "a game in progress is never abandoned")
}

func TestRoom_Abandoned(t *testing.T) {
	r := startedRoom(t, nil, 2)
	_, err := r.ApplyAction("p0", vegas.Action{Type: vegas.ActionDeclareBankruptcy})
	require.NoError(t, err)

	assert.False(t, r.Abandoned())
	r.Depart("p0", "c0")
	r.Depart("p1", "c1")
	assert.True(t, r.Abandoned())
}

func TestRoom_SnapshotIsACopy(t *testing.T) {
	r := startedRoom(t, nil, 2)

	info := r.Snapshot()
	info.GameState.Players[0].Money = -1
	info.Players[0].Name = "Mallory"

	again := r.Snapshot()
	assert.NotEqual(t, -1, again.GameState.Players[0].Money)
	assert.NotEqual(t, "Mallory", again.Players[0].Name)
}

func TestRoom_BroadcastExcludes(t *testing.T) {
	sender := &recordingSender{}
	r := newTestRoom(sender)
	seatPlayers(t, r, 3)
	r.DetachConnection("p2", "c2")

	r.Broadcast(protocol.ServerMessage{Type: protocol.TypePlayerJoined}, "p0")

	assert.Empty(t, sender.typesFor("c0"))
	assert.Equal(t, []protocol.MessageType{protocol.TypePlayerJoined}, sender.typesFor("c1"))
	assert.Empty(t, sender.typesFor("c2"), "disconnected seats are skipped")
}

func TestRoom_TurnInfo(t *testing.T) {
	r := newTestRoom(nil)
	_, err := r.TurnInfo()
	assert.ErrorIs(t, err, ErrGameNotStarted)

	r = startedRoom(t, nil, 2)
	_, err = r.ApplyAction("p0", vegas.Action{Type: vegas.ActionEndTurn})
	require.NoError(t, err)

	info, err := r.TurnInfo()
	assert.NoError(t, err)
	assert.Equal(t, "p1", info.CurrentPlayerID)
	assert.Equal(t, 1, info.CurrentPlayerIndex)
}

// Why: one room mutation must complete before the next begins
func TestRoom_ConcurrentActions(t *testing.T) {
	r := startedRoom(t, nil, 2)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.ApplyAction("p0", vegas.Action{Type: vegas.ActionRollDice}); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted, "exactly one roll per turn is accepted")
	state, _ := r.GameState()
	assert.True(t, state.GameState.Turn.Rolled)
}

// stalledSender blocks every write to one connection until release is closed.
type stalledSender struct {
	recordingSender
	conn    string
	stalled chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *stalledSender) Send(connectionID string, msg protocol.ServerMessage) error {
	if connectionID == s.conn {
		s.once.Do(func() { close(s.stalled) })
		<-s.release
	}
	return s.recordingSender.Send(connectionID, msg)
}

func TestRoom_StalledSocketDoesNotBlockRoom(t *testing.T) {
	sender := &stalledSender{stalled: make(chan struct{}), release: make(chan struct{})}
	r := startedRoom(t, sender, 2)
	sender.conn = "c1"

	done := make(chan error, 1)
	go func() {
		_, err := r.ApplyAction("p0", vegas.Action{Type: vegas.ActionRollDice})
		done <- err
	}()
	<-sender.stalled

	read := make(chan protocol.RoomInfo, 1)
	go func() { read <- r.Snapshot() }()
	select {
	case info := <-read:
		assert.True(t, info.GameState.Turn.Rolled)
	case <-time.After(2 * time.Second):
		t.Fatal("room stayed locked while a socket was stalled")
	}

	close(sender.release)
	require.NoError(t, <-done)
	assert.Contains(t, sender.typesFor("c0"), protocol.TypeDiceRolled)
	assert.Contains(t, sender.typesFor("c1"), protocol.TypeDiceRolled)
}
