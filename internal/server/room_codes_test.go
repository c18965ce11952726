package server_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vegas-server/internal/server"
)

func TestGenerateRoomCodeFormat(t *testing.T) {
	assert := assert.New(t)
	usedCodes := make(map[string]bool)

	for range 100 {
		code := server.GenerateRoomCode(usedCodes)

		assert.Len(code, 4)
		assert.NoError(server.ValidateRoomCode(code))
	}
}

func TestGenerateRoomCodeUniqueness(t *testing.T) {
	usedCodes := make(map[string]bool)

	for range 1000 {
		code := server.GenerateRoomCode(usedCodes)
		assert.False(t, usedCodes[code], "Code %s was generated twice", code)
		usedCodes[code] = true
	}

	assert.Len(t, usedCodes, 1000)
}

func TestGenerateRoomCodeAvoidsUsedCodes(t *testing.T) {
	// Why: with every other code taken the generator must keep retrying until it finds the free one
	usedCodes := make(map[string]bool)
	for a := 'A'; a <= 'Z'; a++ {
		for b := 'A'; b <= 'Z'; b++ {
			for c := 'A'; c <= 'Z'; c++ {
				for d := 'A'; d <= 'Z'; d++ {
					usedCodes[string([]rune{a, b, c, d})] = true
				}
			}
		}
	}
	delete(usedCodes, "LUCK")

	assert.Equal(t, "LUCK", server.GenerateRoomCode(usedCodes))
}

func TestValidateRoomCode(t *testing.T) {
	tests := []struct {
		code    string
		wantErr string
	}{
		{code: "BEAR"},
		{code: "zzzz"},
		{code: "", wantErr: "exactly 4 characters"},
		{code: "ABC", wantErr: "exactly 4 characters"},
		{code: "ABCDE", wantErr: "exactly 4 characters"},
		{code: "1234", wantErr: "only letters A-Z"},
		{code: "A-B!", wantErr: "only letters A-Z"},
		{code: " ABC", wantErr: "only letters A-Z"},
	}

	for _, tt := range tests {
		err := server.ValidateRoomCode(tt.code)
		if tt.wantErr == "" {
			assert.NoError(t, err, "code %q", tt.code)
			continue
		}
		assert.ErrorIs(t, err, server.ErrInvalidRoomCode, "code %q", tt.code)
		assert.Contains(t, err.Error(), tt.wantErr)
	}
}

func TestNormalizeRoomCode(t *testing.T) {
	assert.Equal(t, "ABCD", server.NormalizeRoomCode(" abcd "))
	assert.Equal(t, "ABCD", server.NormalizeRoomCode("ABCD"))
}
