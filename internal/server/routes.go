package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"vegas-server/internal/apperr"
	"vegas-server/internal/protocol"
	"vegas-server/internal/vegas"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/rooms", s.listRoomsHandler)
	mux.HandleFunc("GET /api/room/{roomId}", s.roomHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/websocket", s.websocketHandler)

	return corsMiddleware(mux)
}

func (s *Server) listRoomsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.ListRooms())
}

func (s *Server) roomHandler(w http.ResponseWriter, r *http.Request) {
	room, err := s.registry.FindRoom(r.PathValue("roomId"))
	if err != nil {
		status := http.StatusInternalServerError
		if isNotFound(err) {
			status = http.StatusNotFound
		}
		s.writeJSON(w, status, protocol.ErrorMessage{Message: err.Error(), Code: apperr.CodeOf(err)})
		return
	}
	s.writeJSON(w, http.StatusOK, room.Snapshot())
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("Failed to open websocket", "error", err)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()
	connectionID := uuid.New().String()
	logger := s.logger.With("connection", connectionID)

	logger.Info("New connection")
	s.connections.AddConnection(connectionID, socket)
	s.health.UpdateActivity(connectionID)
	defer s.handleDisconnect(connectionID)

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			logger.Info("Connection closed", "reason", err)
			return
		}
		if msgType != websocket.MessageText {
			logger.Debug("Ignoring non-text message")
			continue
		}

		s.health.UpdateActivity(connectionID)
		if !s.limiter.Allow(connectionID) {
			s.sendError(connectionID, ErrRateLimited)
			continue
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.sendError(connectionID, ErrInvalidPayload.WithMessage("Invalid JSON"))
			continue
		}
		logger.Debug("Message received", "type", env.Type)

		s.dispatch(ctx, connectionID, env)
	}
}

type handlerFunc func(ctx context.Context, connectionID string, env protocol.Envelope) (roomID string, err error)

func (s *Server) handlerFor(t protocol.MessageType) handlerFunc {
	switch t {
	case protocol.TypePing:
		return s.handlePing
	case protocol.TypeCreateRoom:
		return s.handleCreateRoom
	case protocol.TypeJoinRoom:
		return s.handleJoinRoom
	case protocol.TypeSelectToken:
		return s.handleSelectToken
	case protocol.TypeSetReady:
		return s.handleSetReady
	case protocol.TypeStartGame:
		return s.handleStartGame
	case protocol.TypeGameAction:
		return s.handleGameAction
	case protocol.TypeLeaveRoom:
		return s.handleLeaveRoom
	case protocol.TypeRejoinGame:
		return s.handleRejoinGame
	case protocol.TypeRequestNextTurn:
		return s.handleRequestNextTurn
	case protocol.TypeRequestGameState:
		return s.handleRequestGameState
	case protocol.TypeTransitionReady:
		return s.handleTransitionReady
	}
	return nil
}

// dispatch routes one envelope. A failing handler only ever answers its own
// connection; a panicking one is reported as an internal error.
func (s *Server) dispatch(ctx context.Context, connectionID string, env protocol.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Handler panic",
				"type", env.Type, "connection", connectionID, "panic", r, "stack", string(debug.Stack()))
			s.sendError(connectionID, ErrInternal)
		}
	}()

	handler := s.handlerFor(env.Type)
	if !env.Type.Inbound() || handler == nil {
		s.sendError(connectionID, ErrUnknownMessageType.WithMessage("Unknown message type: %s", env.Type))
		return
	}

	s.attach(connectionID, env)

	roomID, err := handler(ctx, connectionID, env)
	if err != nil {
		s.sendError(connectionID, err)
	}
	if roomID == "" {
		roomID = env.RoomID
	}
	if roomID != "" {
		s.broadcastConnectivity(roomID)
	}
}

// attach seats an unclaimed connection for the player named in the envelope,
// provided that player is known and has no live connection of its own.
func (s *Server) attach(connectionID string, env protocol.Envelope) {
	// A rejoin checks its session token before it takes the seat.
	if env.PlayerID == "" || env.Type == protocol.TypeRejoinGame {
		return
	}
	if _, claimed := s.registry.Sessions().ByConnection(connectionID); claimed {
		return
	}
	if room, ok := s.registry.Attach(env.PlayerID, connectionID); ok {
		s.logger.Info("Connection claimed by seat", "room", room.ID, "player", env.PlayerID, "connection", connectionID)
	}
}

// seated resolves the sender of a message to its session and room.
func (s *Server) seated(connectionID string) (SessionInfo, *Room, error) {
	session, ok := s.registry.Sessions().ByConnection(connectionID)
	if !ok {
		return SessionInfo{}, nil, ErrNotInRoom
	}
	room, err := s.registry.FindRoom(session.RoomID)
	if err != nil {
		return SessionInfo{}, nil, err
	}
	return session, room, nil
}

func (s *Server) handlePing(_ context.Context, connectionID string, _ protocol.Envelope) (string, error) {
	return "", s.connections.Send(connectionID, protocol.ServerMessage{Type: protocol.TypePong, Payload: struct{}{}})
}

func (s *Server) handleCreateRoom(_ context.Context, connectionID string, env protocol.Envelope) (string, error) {
	var req protocol.CreateRoomRequest
	if err := env.Decode(&req); err != nil {
		return "", ErrInvalidPayload.Wrap(err)
	}

	room, playerID, err := s.registry.CreateRoom(req.PlayerName, connectionID)
	if err != nil {
		return "", err
	}
	token, err := s.tokens.Issue(playerID, room.ID)
	if err != nil {
		return room.ID, ErrInternal.Wrap(err)
	}

	return room.ID, s.connections.Send(connectionID, protocol.ServerMessage{
		Type: protocol.TypeRoomCreated,
		Payload: protocol.RoomCreated{
			RoomID:       room.ID,
			PlayerID:     playerID,
			SessionToken: token,
			RoomInfo:     room.Snapshot(),
		},
	})
}

func (s *Server) handleJoinRoom(_ context.Context, connectionID string, env protocol.Envelope) (string, error) {
	var req protocol.JoinRoomRequest
	if err := env.Decode(&req); err != nil {
		return "", ErrInvalidPayload.Wrap(err)
	}
	if req.RoomID == "" {
		req.RoomID = env.RoomID
	}
	if req.PlayerID == "" {
		req.PlayerID = env.PlayerID
	}

	room, playerID, err := s.registry.JoinRoom(req.RoomID, req.PlayerName, req.PlayerID, connectionID)
	if err != nil {
		return "", err
	}
	token, err := s.tokens.Issue(playerID, room.ID)
	if err != nil {
		return room.ID, ErrInternal.Wrap(err)
	}

	snapshot := room.Snapshot()
	if err := s.connections.Send(connectionID, protocol.ServerMessage{
		Type: protocol.TypeJoinedRoom,
		Payload: protocol.JoinedRoom{
			RoomID:       room.ID,
			PlayerID:     playerID,
			SessionToken: token,
			RoomInfo:     snapshot,
		},
	}); err != nil {
		return room.ID, err
	}

	room.Broadcast(protocol.ServerMessage{
		Type:    protocol.TypePlayerJoined,
		Payload: protocol.SeatChanged{PlayerID: playerID, RoomInfo: snapshot},
	}, playerID)
	return room.ID, nil
}

func (s *Server) handleSelectToken(_ context.Context, connectionID string, env protocol.Envelope) (string, error) {
	session, room, err := s.seated(connectionID)
	if err != nil {
		return "", err
	}
	var req protocol.SelectTokenRequest
	if err := env.Decode(&req); err != nil {
		return room.ID, ErrInvalidPayload.Wrap(err)
	}

	if err := room.SelectToken(session.PlayerID, req.TokenName); err != nil {
		return room.ID, err
	}
	room.Broadcast(protocol.ServerMessage{
		Type: protocol.TypeTokenSelected,
		Payload: protocol.TokenSelected{
			PlayerID:  session.PlayerID,
			TokenName: req.TokenName,
			RoomInfo:  room.Snapshot(),
		},
	}, "")
	return room.ID, nil
}

func (s *Server) handleSetReady(_ context.Context, connectionID string, env protocol.Envelope) (string, error) {
	session, room, err := s.seated(connectionID)
	if err != nil {
		return "", err
	}
	var req protocol.SetReadyRequest
	if err := env.Decode(&req); err != nil {
		return room.ID, ErrInvalidPayload.Wrap(err)
	}

	if err := room.SetReady(session.PlayerID, req.Ready); err != nil {
		return room.ID, err
	}
	room.Broadcast(protocol.ServerMessage{
		Type: protocol.TypePlayerReadyChanged,
		Payload: protocol.PlayerReadyChanged{
			PlayerID: session.PlayerID,
			Ready:    req.Ready,
			RoomInfo: room.Snapshot(),
		},
	}, "")
	return room.ID, nil
}

func (s *Server) handleStartGame(_ context.Context, connectionID string, _ protocol.Envelope) (string, error) {
	session, room, err := s.seated(connectionID)
	if err != nil {
		return "", err
	}
	return room.ID, room.StartGame(session.PlayerID)
}

// handleGameAction applies the action, then follows its event with a full
// snapshot so clients that missed an event converge.
func (s *Server) handleGameAction(_ context.Context, connectionID string, env protocol.Envelope) (string, error) {
	session, room, err := s.seated(connectionID)
	if err != nil {
		return "", err
	}
	var action vegas.Action
	if err := env.Decode(&action); err != nil {
		return room.ID, ErrInvalidPayload.Wrap(err)
	}

	if _, err := room.ApplyAction(session.PlayerID, action); err != nil {
		return room.ID, err
	}
	if state, ok := room.GameState(); ok {
		room.Broadcast(protocol.ServerMessage{Type: protocol.TypeGameStateUpdate, Payload: state}, "")
	}
	return room.ID, nil
}

func (s *Server) handleLeaveRoom(_ context.Context, connectionID string, _ protocol.Envelope) (string, error) {
	session, ok := s.registry.Sessions().ByConnection(connectionID)
	if !ok {
		return "", ErrNotInRoom
	}

	room, empty, err := s.registry.LeaveRoom(session.PlayerID)
	if err != nil {
		return "", err
	}
	if err := s.connections.Send(connectionID, protocol.ServerMessage{
		Type:    protocol.TypeLeftRoom,
		Payload: protocol.LeftRoom{RoomID: room.ID},
	}); err != nil {
		s.logger.Warn("Failed to confirm leave", "connection", connectionID, "error", err)
	}
	if empty {
		return "", nil
	}

	room.Broadcast(protocol.ServerMessage{
		Type:    protocol.TypePlayerLeft,
		Payload: protocol.SeatChanged{PlayerID: session.PlayerID, RoomInfo: room.Snapshot()},
	}, "")
	return room.ID, nil
}

// handleRejoinGame reattaches a seat to this connection. A session token, when
// sent, must belong to the seat.
func (s *Server) handleRejoinGame(ctx context.Context, connectionID string, env protocol.Envelope) (string, error) {
	var req protocol.RejoinRequest
	if err := env.Decode(&req); err != nil {
		return "", ErrInvalidPayload.Wrap(err)
	}
	if req.RoomID == "" {
		req.RoomID = env.RoomID
	}
	if req.PlayerID == "" {
		req.PlayerID = env.PlayerID
	}
	if req.RoomID == "" || req.PlayerID == "" {
		return "", ErrInvalidPayload.WithMessage("rejoin_game needs roomId and playerId")
	}

	roomID := NormalizeRoomCode(req.RoomID)
	if req.SessionToken != "" {
		if err := s.tokens.Verify(req.SessionToken, req.PlayerID, roomID); err != nil {
			return "", err
		}
	}

	room, err := s.registry.Rejoin(ctx, roomID, req.PlayerID, connectionID, req.StoredState)
	if err != nil {
		return "", err
	}
	s.logger.Info("Player rejoined", "room", room.ID, "player", req.PlayerID)
	return room.ID, s.sendState(connectionID, room)
}

func (s *Server) handleRequestNextTurn(_ context.Context, connectionID string, _ protocol.Envelope) (string, error) {
	_, room, err := s.seated(connectionID)
	if err != nil {
		return "", err
	}
	info, err := room.TurnInfo()
	if err != nil {
		return room.ID, err
	}
	return room.ID, s.connections.Send(connectionID, protocol.ServerMessage{Type: protocol.TypeTurnInfo, Payload: info})
}

func (s *Server) handleRequestGameState(_ context.Context, connectionID string, _ protocol.Envelope) (string, error) {
	_, room, err := s.seated(connectionID)
	if err != nil {
		return "", err
	}
	return room.ID, s.sendState(connectionID, room)
}

// handleTransitionReady is sent by a client that switched from the lobby view
// to the game view, usually on a fresh connection.
func (s *Server) handleTransitionReady(ctx context.Context, connectionID string, env protocol.Envelope) (string, error) {
	playerID, roomID := env.PlayerID, env.RoomID
	if session, ok := s.registry.Sessions().ByConnection(connectionID); ok {
		if playerID == "" {
			playerID = session.PlayerID
		}
		if roomID == "" {
			roomID = session.RoomID
		}
	}
	if playerID == "" || roomID == "" {
		return "", ErrNotInRoom
	}

	room, err := s.registry.Rejoin(ctx, roomID, playerID, connectionID, nil)
	if err != nil {
		return "", err
	}
	return room.ID, s.sendState(connectionID, room)
}

// sendState answers with game_state_update once a game exists and with the
// lobby's room_state before that.
func (s *Server) sendState(connectionID string, room *Room) error {
	if state, ok := room.GameState(); ok {
		return s.connections.Send(connectionID, protocol.ServerMessage{Type: protocol.TypeGameStateUpdate, Payload: state})
	}
	return s.connections.Send(connectionID, protocol.ServerMessage{Type: protocol.TypeRoomState, Payload: room.Snapshot()})
}

func (s *Server) broadcastConnectivity(roomID string) {
	room, err := s.registry.FindRoom(roomID)
	if err != nil {
		return
	}
	room.Broadcast(protocol.ServerMessage{Type: protocol.TypePlayerConnectivity, Payload: room.Connectivity()}, "")
}

func (s *Server) sendError(connectionID string, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		s.logger.Error("Request failed", "connection", connectionID, "error", err)
	} else {
		s.logger.Debug("Request rejected", "connection", connectionID, "error", err)
	}

	msg := protocol.ServerMessage{
		Type:    protocol.TypeError,
		Payload: protocol.ErrorMessage{Message: err.Error(), Code: apperr.CodeOf(err)},
	}
	if sendErr := s.connections.Send(connectionID, msg); sendErr != nil {
		s.logger.Warn("Failed to send error message", "connection", connectionID, "error", sendErr)
	}
}

// handleDisconnect runs when a socket's read loop ends. Lobby seats are
// removed; seats in a started game keep their place for a rejoin.
func (s *Server) handleDisconnect(connectionID string) {
	s.connections.RemoveConnection(connectionID)
	s.limiter.RemoveConnection(connectionID)
	s.health.RemoveConnection(connectionID)

	result := s.registry.Disconnect(connectionID)
	if result.Room == nil || result.Deleted {
		return
	}

	switch result.Departure {
	case DepartRemoved:
		s.logger.Info("Player left lobby on disconnect", "room", result.Room.ID, "player", result.Session.PlayerID)
		result.Room.Broadcast(protocol.ServerMessage{
			Type:    protocol.TypePlayerLeft,
			Payload: protocol.SeatChanged{PlayerID: result.Session.PlayerID, RoomInfo: result.Room.Snapshot()},
		}, "")
	case DepartDetached:
		s.logger.Info("Player disconnected", "room", result.Room.ID, "player", result.Session.PlayerID)
		result.Room.Broadcast(protocol.ServerMessage{
			Type:    protocol.TypePlayerDisconnected,
			Payload: protocol.PlayerDisconnected{PlayerID: result.Session.PlayerID, Name: result.Session.Name},
		}, "")
	default:
		return
	}
	s.broadcastConnectivity(result.Room.ID)
}

// sweep closes idle sockets, then drops stale lobby seats and dead rooms.
func (s *Server) sweep() {
	if s.cfg.IdleTimeout > 0 {
		for _, id := range s.health.GetInactiveConnections(s.cfg.IdleTimeout) {
			s.logger.Info("Closing idle connection", "connection", id)
			s.connections.Close(id, "Idle timeout")
		}
	}
	s.limiter.Cleanup()

	for _, swept := range s.registry.Sweep() {
		if swept.Deleted {
			continue
		}
		for _, playerID := range swept.Removed {
			swept.Room.Broadcast(protocol.ServerMessage{
				Type:    protocol.TypePlayerLeft,
				Payload: protocol.SeatChanged{PlayerID: playerID, RoomInfo: swept.Room.Snapshot()},
			}, "")
		}
		s.broadcastConnectivity(swept.Room.ID)
	}
}
