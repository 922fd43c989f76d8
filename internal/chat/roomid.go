package chat

import (
	"fmt"
	"strconv"
	"strings"
)

// RoomId derives the canonical id for a 1:1 conversation from its two
// participants. The pair is sorted first, so both directions of initiation
// resolve to the same id, and distinct pairs never collide.
func RoomId(a, b int) string {
	if b < a {
		a, b = b, a
	}

	return fmt.Sprintf("%d_%d", a, b)
}

// ParseRoomId recovers the two participant ids from a canonical room id.
func ParseRoomId(roomId string) (int, int, error) {
	first, second, ok := strings.Cut(roomId, "_")
	if !ok {
		return 0, 0, fmt.Errorf("malformed room id %q", roomId)
	}

	a, err := strconv.Atoi(first)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed room id %q: %w", roomId, err)
	}

	b, err := strconv.Atoi(second)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed room id %q: %w", roomId, err)
	}

	if a >= b {
		return 0, 0, fmt.Errorf("malformed room id %q: participants out of order", roomId)
	}

	return a, b, nil
}
