package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"vegas-server/internal/protocol"
	"vegas-server/internal/vegas"
)

const maxConsecutiveRejections = 5

type BotOptions struct {
	Name string
	// RoomID is joined when set; otherwise the bot creates a room and hosts.
	RoomID string
	// Token is the preferred game piece; the first free one is taken if it is
	// not available.
	Token string
	// StartWith is how many ready seats the hosting bot waits for.
	StartWith int
	// MaxTurns makes the bot leave after that many of its own turns. Zero
	// plays until the game is over.
	MaxTurns  int
	Autopilot *Autopilot
	// OnRoom is called once the bot holds a seat.
	OnRoom func(roomID, playerID string)
}

// Bot is a headless player: it takes a seat, readies up and lets an
// Autopilot play its turns, checkpointing its session so a restarted bot
// rejoins the same seat.
type Bot struct {
	url      string
	opts     BotOptions
	recovery *Recovery
	logger   *slog.Logger

	conn       Transport
	tc         *TurnController
	session    PersistedSession
	room       protocol.RoomInfo
	started    bool
	startSent  bool
	readySent  bool
	turns      int
	rejections int
}

func NewBot(url string, opts BotOptions, recovery *Recovery, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.StartWith < 2 {
		opts.StartWith = 2
	}
	if opts.Autopilot == nil {
		opts.Autopilot = NewAutopilot()
	}
	return &Bot{url: url, opts: opts, recovery: recovery, logger: logger.With("bot", opts.Name)}
}

// Turns reports how many turns the bot has ended.
func (b *Bot) Turns() int {
	return b.turns
}

// Run plays until the game is over, the bot leaves after MaxTurns, or ctx is
// cancelled.
func (b *Bot) Run(ctx context.Context) error {
	conn, err := Dial(ctx, b.url)
	if err != nil {
		return err
	}
	defer conn.Close()
	b.conn = conn

	done, err := b.enter(ctx)
	if err != nil || done {
		return err
	}
	for {
		env, err := conn.Receive(ctx)
		if err != nil {
			return err
		}
		done, err := b.handle(ctx, env)
		if err != nil || done {
			return err
		}
	}
}

// enter rejoins a stored seat when there is one, and otherwise joins or
// creates a room. It reports true when the rejoined game is already over.
func (b *Bot) enter(ctx context.Context) (bool, error) {
	session, err := b.recovery.Resolve(ctx, Identity{RoomID: b.opts.RoomID})
	if err == nil {
		result, err := b.recovery.Rejoin(ctx, b.conn, session)
		switch {
		case errors.Is(err, ErrSessionUnrecoverable):
			b.logger.Info("Stored seat is gone, joining fresh", "error", err)
			if err := b.recovery.Clear(ctx); err != nil {
				b.logger.Warn("Failed to clear session", "error", err)
			}
		case err != nil:
			return false, err
		case result.Mode == ModeDegraded:
			return false, ErrNotConnected.WithMessage("Server did not answer the rejoin")
		default:
			return b.resume(ctx, session, result)
		}
	}

	if b.opts.RoomID != "" {
		return false, b.send(ctx, protocol.TypeJoinRoom, protocol.JoinRoomRequest{RoomID: b.opts.RoomID, PlayerName: b.opts.Name})
	}
	return false, b.send(ctx, protocol.TypeCreateRoom, protocol.CreateRoomRequest{PlayerName: b.opts.Name})
}

func (b *Bot) resume(ctx context.Context, session PersistedSession, result RejoinResult) (bool, error) {
	b.session = session
	b.tc = NewTurnController(session.PlayerID)
	if session.Snapshot != nil {
		b.room = *session.Snapshot
	}
	b.readySent, b.startSent = true, true

	done, err := b.handle(ctx, result.Snapshot)
	if err != nil || done {
		return done, err
	}
	for _, env := range result.Skipped {
		if done, err := b.handle(ctx, env); err != nil || done {
			return done, err
		}
	}
	return false, nil
}

func (b *Bot) send(ctx context.Context, typ protocol.MessageType, payload any) error {
	return b.conn.Send(ctx, protocol.ClientMessage{
		Type:     typ,
		PlayerID: b.session.PlayerID,
		RoomID:   b.session.RoomID,
		Payload:  payload,
	})
}

// handle reacts to one server message and reports whether the bot is done.
func (b *Bot) handle(ctx context.Context, env protocol.Envelope) (bool, error) {
	if b.tc != nil {
		if err := b.tc.Apply(env); err != nil {
			return false, err
		}
	}

	switch env.Type {
	case protocol.TypeRoomCreated:
		var created protocol.RoomCreated
		if err := env.Decode(&created); err != nil {
			return false, err
		}
		return false, b.seated(ctx, created.RoomID, created.PlayerID, created.SessionToken, created.RoomInfo)
	case protocol.TypeJoinedRoom:
		var joined protocol.JoinedRoom
		if err := env.Decode(&joined); err != nil {
			return false, err
		}
		return false, b.seated(ctx, joined.RoomID, joined.PlayerID, joined.SessionToken, joined.RoomInfo)
	case protocol.TypeRoomState:
		var info protocol.RoomInfo
		if err := env.Decode(&info); err != nil {
			return false, err
		}
		return false, b.lobbyChanged(ctx, info)
	case protocol.TypePlayerJoined, protocol.TypePlayerLeft, protocol.TypeTokenSelected, protocol.TypePlayerReadyChanged:
		var change struct {
			RoomInfo protocol.RoomInfo `json:"roomInfo"`
		}
		if err := env.Decode(&change); err != nil {
			return false, err
		}
		return false, b.lobbyChanged(ctx, change.RoomInfo)
	case protocol.TypeGameStarted:
		b.started = true
		b.checkpoint(ctx)
	case protocol.TypeGameStateUpdate:
		b.started = true
	case protocol.TypeTurnEnded:
		b.checkpoint(ctx)
	case protocol.TypeGameOver, protocol.TypePlayerBankrupt:
		if b.tc == nil {
			break
		}
		if b.tc.Phase() == PhaseGameOver {
			return true, b.finish(ctx, "game over")
		}
		if game := b.tc.Game(); game != nil {
			if me := game.Player(b.session.PlayerID); me != nil && me.Bankrupt {
				return true, b.finish(ctx, "bankrupt")
			}
		}
	case protocol.TypeError:
		return false, b.rejected(ctx, env)
	case protocol.TypeDiceRolled, protocol.TypePropertyPurchased, protocol.TypeRentPaid,
		protocol.TypeTaxPaid, protocol.TypeCardDrawn, protocol.TypeJailReleased:
		b.rejections = 0
	}

	if b.started {
		return b.play(ctx)
	}
	return false, nil
}

func (b *Bot) seated(ctx context.Context, roomID, playerID, token string, info protocol.RoomInfo) error {
	b.session = PersistedSession{
		RoomID:       roomID,
		PlayerID:     playerID,
		PlayerName:   b.opts.Name,
		IsHost:       info.HostID == playerID,
		SessionToken: token,
	}
	b.tc = NewTurnController(playerID)
	b.logger.Info("Seated", "room", roomID, "player", playerID)
	if b.opts.OnRoom != nil {
		b.opts.OnRoom(roomID, playerID)
	}
	return b.lobbyChanged(ctx, info)
}

// lobbyChanged claims a token, readies up once it holds one, and starts the
// game when hosting and enough seats are ready.
func (b *Bot) lobbyChanged(ctx context.Context, info protocol.RoomInfo) error {
	b.room = info
	if info.Status != protocol.StatusLobby {
		return nil
	}
	me, ok := info.Seat(b.session.PlayerID)
	if !ok {
		return nil
	}
	b.session.IsHost = me.IsHost
	b.session.SelectedToken = me.Token
	b.checkpoint(ctx)

	switch {
	case me.Token == "":
		return b.send(ctx, protocol.TypeSelectToken, protocol.SelectTokenRequest{TokenName: b.freeToken()})
	case !me.Ready && !b.readySent:
		b.readySent = true
		return b.send(ctx, protocol.TypeSetReady, protocol.SetReadyRequest{Ready: true})
	}

	ready := 0
	for _, seat := range info.Players {
		if seat.Ready && seat.Token != "" {
			ready++
		}
	}
	if me.IsHost && info.CanStart && ready >= b.opts.StartWith && !b.startSent {
		b.startSent = true
		b.logger.Info("Starting game", "players", ready)
		return b.send(ctx, protocol.TypeStartGame, nil)
	}
	return nil
}

func (b *Bot) freeToken() string {
	taken := make([]string, 0, len(b.room.Players))
	for _, seat := range b.room.Players {
		if seat.Token != "" {
			taken = append(taken, seat.Token)
		}
	}
	if b.opts.Token != "" && !slices.Contains(taken, b.opts.Token) {
		return b.opts.Token
	}
	for _, token := range vegas.Tokens() {
		if !slices.Contains(taken, token) {
			return token
		}
	}
	return ""
}

// play sends the autopilot's next action when it is the bot's turn.
func (b *Bot) play(ctx context.Context) (bool, error) {
	action, ok := b.opts.Autopilot.Next(b.tc)
	if !ok {
		return false, nil
	}
	if err := b.tc.Begin(action.Type); err != nil {
		b.logger.Debug("Action gated locally", "action", action.Type, "error", err)
		return false, nil
	}
	if err := b.send(ctx, protocol.TypeGameAction, action); err != nil {
		return false, err
	}

	if action.Type == vegas.ActionEndTurn {
		b.turns++
		if b.opts.MaxTurns > 0 && b.turns >= b.opts.MaxTurns {
			if err := b.send(ctx, protocol.TypeLeaveRoom, nil); err != nil {
				return false, err
			}
			return true, b.finish(ctx, "turn limit reached")
		}
	}
	return false, nil
}

// rejected handles an error reply. Lobby conflicts are retried; repeated game
// rejections trigger a resync and eventually give up.
func (b *Bot) rejected(ctx context.Context, env protocol.Envelope) error {
	var msg protocol.ErrorMessage
	if err := env.Decode(&msg); err != nil {
		return err
	}
	serr := ServerError(msg.Code, msg.Message)
	b.logger.Warn("Server rejected message", "code", serr.Code, "message", serr.Message)

	switch serr.Code {
	case "TOKEN_TAKEN", "INVALID_TOKEN":
		return b.send(ctx, protocol.TypeSelectToken, protocol.SelectTokenRequest{TokenName: b.freeToken()})
	case "ROOM_NOT_FOUND", "ROOM_FULL", "GAME_ALREADY_STARTED", "USERNAME_INVALID", "INVALID_ROOM_CODE":
		return serr
	}

	b.rejections++
	if b.rejections > maxConsecutiveRejections {
		return fmt.Errorf("giving up after %d rejections: %w", b.rejections, serr)
	}
	return b.send(ctx, protocol.TypeRequestGameState, nil)
}

func (b *Bot) checkpoint(ctx context.Context) {
	if b.session.PlayerID == "" {
		return
	}
	snapshot := b.room
	if b.tc != nil {
		if game := b.tc.Game(); game != nil {
			snapshot.GameState = game
			snapshot.Status = protocol.StatusPlaying
		}
	}
	b.session.Snapshot = &snapshot
	if err := b.recovery.Checkpoint(ctx, b.session); err != nil {
		b.logger.Warn("Failed to checkpoint session", "error", err)
	}
}

func (b *Bot) finish(ctx context.Context, reason string) error {
	b.logger.Info("Leaving", "reason", reason, "turns", b.turns)
	return b.recovery.Clear(ctx)
}
