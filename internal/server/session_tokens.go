package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims bind a rejoin credential to one seat of one room.
type SessionClaims struct {
	RoomID string `json:"roomId"`
	jwt.RegisteredClaims
}

// TokenIssuer signs the session tokens handed out on create and join, and
// checks them again on rejoin.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer uses secret for HS256 signing. With an empty secret a random
// one is generated, so tokens only survive as long as the process.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	key := []byte(secret)
	if len(key) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			panic(err)
		}
		key = []byte(hex.EncodeToString(buf))
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: key, ttl: ttl}
}

func (ti *TokenIssuer) Issue(playerID, roomID string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		RoomID: roomID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
			Issuer:    "vegas-server",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
}

// Verify checks the signature and expiry and that the token belongs to
// playerID in roomID.
func (ti *TokenIssuer) Verify(token, playerID, roomID string) error {
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return ti.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrSessionInvalid.WithMessage("Session token has expired")
		}
		return ErrSessionInvalid.Wrap(err)
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return ErrSessionInvalid
	}
	if claims.Subject != playerID || claims.RoomID != roomID {
		return ErrSessionInvalid
	}
	return nil
}
