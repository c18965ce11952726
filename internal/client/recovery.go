package client

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"vegas-server/internal/apperr"
	"vegas-server/internal/protocol"
)

const (
	DefaultResyncDelay   = 500 * time.Millisecond
	DefaultRejoinTimeout = 10 * time.Second
)

// Identity is the room and player a game view was opened for. Either field
// may be missing or hold a placeholder such as "undefined".
type Identity struct {
	RoomID   string
	PlayerID string
}

type Mode string

const (
	// ModeSynced means the server answered the rejoin with a snapshot.
	ModeSynced Mode = "synced"
	// ModeDegraded means no snapshot arrived in time. The caller keeps its
	// stored snapshot and plays on as a single seat until it can reconnect.
	ModeDegraded Mode = "degraded"
)

type RejoinResult struct {
	Mode     Mode
	Snapshot protocol.Envelope
	// Skipped holds messages that arrived before the snapshot, in order.
	Skipped []protocol.Envelope
}

// Recovery keeps a player's identity across reloads and reconnects.
type Recovery struct {
	store       SessionStore
	key         string
	logger      *slog.Logger
	now         func() time.Time
	ResyncDelay time.Duration
	Timeout     time.Duration
}

func NewRecovery(store SessionStore, key string, logger *slog.Logger) *Recovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recovery{
		store:       store,
		key:         key,
		logger:      logger.With("session", key),
		now:         time.Now,
		ResyncDelay: DefaultResyncDelay,
		Timeout:     DefaultRejoinTimeout,
	}
}

func missingID(id string) bool {
	switch strings.TrimSpace(id) {
	case "", "undefined", "null":
		return true
	}
	return false
}

// Resolve decides which seat to rejoin. Identifiers from the URL win; missing
// ones come from the stored session. A stored session for a different seat is
// ignored. With no room or player left, the session is unrecoverable.
func (r *Recovery) Resolve(ctx context.Context, fromURL Identity) (PersistedSession, error) {
	stored, err := r.store.Load(ctx, r.key)
	if err != nil {
		r.logger.Warn("Failed to load stored session", "error", err)
		stored = nil
	}

	var session PersistedSession
	if stored != nil {
		session = *stored
	}
	if !missingID(fromURL.RoomID) && !strings.EqualFold(session.RoomID, fromURL.RoomID) {
		session = PersistedSession{RoomID: fromURL.RoomID}
	}
	if !missingID(fromURL.PlayerID) && session.PlayerID != fromURL.PlayerID {
		session = PersistedSession{RoomID: session.RoomID, PlayerID: fromURL.PlayerID}
	}

	if missingID(session.RoomID) || missingID(session.PlayerID) {
		return PersistedSession{}, ErrSessionUnrecoverable
	}
	return session, nil
}

// Checkpoint stores the session, stamped with the current time. Call it
// before switching views and whenever the process may go away.
func (r *Recovery) Checkpoint(ctx context.Context, session PersistedSession) error {
	session.Timestamp = r.now()
	return r.store.Save(ctx, r.key, session)
}

// Clear forgets the session after the player leaves the room.
func (r *Recovery) Clear(ctx context.Context) error {
	return r.store.Delete(ctx, r.key)
}

// Rejoin runs the rejoin handshake on t: rejoin_game with the stored token and
// snapshot, then request_game_state after ResyncDelay. It returns on the
// first snapshot, or in ModeDegraded once Timeout passes without one.
func (r *Recovery) Rejoin(ctx context.Context, t Transport, session PersistedSession) (RejoinResult, error) {
	rejoinCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	err := t.Send(rejoinCtx, protocol.ClientMessage{
		Type:     protocol.TypeRejoinGame,
		PlayerID: session.PlayerID,
		RoomID:   session.RoomID,
		Payload: protocol.RejoinRequest{
			RoomID:       session.RoomID,
			PlayerID:     session.PlayerID,
			SessionToken: session.SessionToken,
			StoredState:  session.Snapshot,
		},
	})
	if err != nil {
		return r.degradeOn(ctx, err)
	}

	resync := time.AfterFunc(r.ResyncDelay, func() {
		err := t.Send(rejoinCtx, protocol.ClientMessage{
			Type:     protocol.TypeRequestGameState,
			PlayerID: session.PlayerID,
			RoomID:   session.RoomID,
		})
		if err != nil {
			r.logger.Debug("Resync request not sent", "error", err)
		}
	})
	defer resync.Stop()

	var skipped []protocol.Envelope
	for {
		env, err := t.Receive(rejoinCtx)
		if err != nil {
			return r.degradeOn(ctx, err)
		}

		switch env.Type {
		case protocol.TypeGameStateUpdate, protocol.TypeRoomState:
			r.logger.Info("Rejoined", "room", session.RoomID, "player", session.PlayerID)
			return RejoinResult{Mode: ModeSynced, Snapshot: env, Skipped: skipped}, nil
		case protocol.TypeError:
			var msg protocol.ErrorMessage
			if err := env.Decode(&msg); err != nil {
				return RejoinResult{}, err
			}
			serr := ServerError(msg.Code, msg.Message)
			switch serr.Kind {
			case apperr.KindNotFound, apperr.KindForbidden:
				return RejoinResult{}, ErrSessionUnrecoverable.Wrap(serr)
			}
			return RejoinResult{}, serr
		default:
			skipped = append(skipped, env)
		}
	}
}

// degradeOn turns a rejoin timeout into ModeDegraded. Cancellation by the
// caller and transport failures are returned as errors.
func (r *Recovery) degradeOn(ctx context.Context, err error) (RejoinResult, error) {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		r.logger.Warn("Rejoin timed out, continuing degraded", "timeout", r.Timeout)
		return RejoinResult{Mode: ModeDegraded}, nil
	}
	return RejoinResult{}, err
}
