package server

import (
	"math/rand"
	"strings"
)

const roomCodeLength = 4

// GenerateRoomCode returns a code of uppercase letters not present in
// usedCodes, retrying until one is free.
func GenerateRoomCode(usedCodes map[string]bool) string {
	for {
		code := make([]byte, roomCodeLength)
		for i := range code {
			code[i] = 'A' + byte(rand.Intn(26))
		}
		roomCode := string(code)

		if !usedCodes[roomCode] {
			return roomCode
		}
	}
}

func ValidateRoomCode(code string) error {
	if len(code) != roomCodeLength {
		return ErrInvalidRoomCode
	}

	code = strings.ToUpper(code)
	for _, ch := range code {
		if ch < 'A' || ch > 'Z' {
			return ErrInvalidRoomCode.WithMessage("Room code must contain only letters A-Z")
		}
	}

	return nil
}

func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
