package images

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxSlots is the number of image slots per listing.
const MaxSlots = 20

var (
	ErrTooManyFiles   = errors.New("too many images selected")
	ErrNotEnoughSlots = errors.New("not enough free image slots")
	ErrInvalidSlotKey = errors.New("invalid image slot key")
)

// Allocate maps n incoming files onto the lowest free slots, in ascending
// order. The whole batch is rejected when it cannot fit.
func Allocate(occupied map[int]bool, n int) ([]int, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative count %d", ErrTooManyFiles, n)
	}
	if n > MaxSlots {
		return nil, fmt.Errorf("%w: you can only upload up to %d images, you selected %d", ErrTooManyFiles, MaxSlots, n)
	}
	free := make([]int, 0, MaxSlots)
	for slot := 1; slot <= MaxSlots; slot++ {
		if !occupied[slot] {
			free = append(free, slot)
		}
	}
	if n > len(free) {
		return nil, fmt.Errorf("%w: you can only upload %d more image(s)", ErrNotEnoughSlots, len(free))
	}
	return free[:n:n], nil
}

// SlotKey returns the form/JSON key for slot n ("image3").
func SlotKey(n int) string {
	return "image" + strconv.Itoa(n)
}

// ParseSlotKey is the inverse of SlotKey.
func ParseSlotKey(key string) (int, error) {
	rest, ok := strings.CutPrefix(key, "image")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlotKey, key)
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 || n > MaxSlots || strconv.Itoa(n) != rest {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlotKey, key)
	}
	return n, nil
}
