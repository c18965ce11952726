package server

import (
	"time"

	"vegas-server/internal/protocol"
	"vegas-server/internal/vegas"
)

// RoomRecord is the persisted form of a room. Connections are never stored;
// a restored room starts with every seat disconnected.
type RoomRecord struct {
	ID        string              `json:"roomId"`
	HostID    string              `json:"hostId"`
	Status    protocol.RoomStatus `json:"status"`
	Seats     []Seat              `json:"seats"`
	Game      *vegas.GameState    `json:"gameState,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

func (r *Room) Record() RoomRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	seats := make([]Seat, 0, len(r.seats))
	for _, s := range r.seats {
		seats = append(seats, *s)
	}
	return RoomRecord{
		ID:        r.ID,
		HostID:    r.hostID,
		Status:    r.status,
		Seats:     seats,
		Game:      r.game.Clone(),
		CreatedAt: r.createdAt,
		UpdatedAt: r.updatedAt,
	}
}

func roomFromRecord(rec RoomRecord, deps roomDeps) (*Room, error) {
	if rec.ID == "" || len(rec.Seats) == 0 {
		return nil, ErrInvalidSnapshot.WithMessage("Room %q has no seats", rec.ID)
	}
	if rec.Status != protocol.StatusLobby && rec.Game == nil {
		return nil, ErrInvalidSnapshot.WithMessage("Room %s is %s without a game", rec.ID, rec.Status)
	}
	for _, s := range rec.Seats {
		if s.ID == "" {
			return nil, ErrInvalidSnapshot.WithMessage("Room %s has a seat without an id", rec.ID)
		}
	}
	if rec.Game != nil {
		if len(rec.Game.Players) == 0 || rec.Game.CurrentPlayerIndex < 0 || rec.Game.CurrentPlayerIndex >= len(rec.Game.Players) {
			return nil, ErrInvalidSnapshot.WithMessage("Room %s has an inconsistent game", rec.ID)
		}
		for i, p := range rec.Game.Players {
			if p == nil || p.ID == "" {
				return nil, ErrInvalidSnapshot.WithMessage("Room %s has an empty player at %d", rec.ID, i)
			}
		}
	}

	r := newRoom(rec.ID, deps)
	for _, s := range rec.Seats {
		seat := s
		seat.ConnectionID = ""
		r.seats = append(r.seats, &seat)
	}
	r.hostID = rec.HostID
	if _, s := r.seat(r.hostID); s == nil {
		r.hostID = r.seats[0].ID
	}
	r.status = rec.Status
	if r.status == "" {
		r.status = protocol.StatusLobby
	}
	if rec.Game != nil {
		r.game = rec.Game.Clone()
		r.game.Rehydrate(deps.gameOpts...)
	}
	if !rec.CreatedAt.IsZero() {
		r.createdAt = rec.CreatedAt
	}
	if !rec.UpdatedAt.IsZero() {
		r.updatedAt = rec.UpdatedAt
	}
	return r, nil
}

// recordFromSnapshot turns a client-held RoomInfo back into a record so a
// room lost by the server can be rebuilt. roomFromRecord rejects copies that
// are malformed; otherwise the client's copy is trusted.
func recordFromSnapshot(info protocol.RoomInfo) RoomRecord {
	seats := make([]Seat, 0, len(info.Players))
	for _, p := range info.Players {
		seats = append(seats, Seat{ID: p.ID, Name: p.Name, Token: p.Token, Ready: p.Ready})
	}
	hostID := info.HostID
	if hostID == "" {
		for _, p := range info.Players {
			if p.IsHost {
				hostID = p.ID
				break
			}
		}
	}
	status := info.Status
	if status == "" && info.GameState != nil {
		status = protocol.StatusPlaying
	}
	return RoomRecord{
		ID:     NormalizeRoomCode(info.RoomID),
		HostID: hostID,
		Status: status,
		Seats:  seats,
		Game:   info.GameState,
	}
}
