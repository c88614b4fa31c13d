package climb

import (
	"strings"
)

const (
	RoomCodeLength = 6
	roomCodeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateRoomCode returns a random code that taken does not report as used.
func GenerateRoomCode(r Randomizer, taken func(code string) (bool, error)) (string, error) {
	for {
		code := make([]byte, RoomCodeLength)
		for i := range code {
			code[i] = roomCodeChars[r.IntN(len(roomCodeChars))]
		}
		roomCode := string(code)

		used, err := taken(roomCode)
		if err != nil {
			return "", err
		}
		if !used {
			return roomCode, nil
		}
	}
}

func ValidateRoomCode(code string) error {
	if len(code) != RoomCodeLength {
		return ErrInvalidRoomCode
	}

	code = strings.ToUpper(code)
	for _, ch := range code {
		if !strings.ContainsRune(roomCodeChars, ch) {
			return ErrInvalidRoomCode
		}
	}

	return nil
}

func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
