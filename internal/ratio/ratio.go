package ratio

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrInvalidDimensions is returned for zero or negative pixel dimensions.
var ErrInvalidDimensions = errors.New("invalid image dimensions")

// Key is an aspect ratio reduced to lowest terms, e.g. 16:9.
// Two images share a Key iff their width:height ratios are equal,
// regardless of absolute pixel dimensions.
type Key struct {
	W, H int
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.W, k.H)
}

// Reduce computes the Key for the given pixel dimensions.
func Reduce(width, height int) (Key, error) {
	if width <= 0 || height <= 0 {
		return Key{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	d := gcd(width, height)
	return Key{W: width / d, H: height / d}, nil
}

var keyPattern = regexp.MustCompile(`^(\d+):(\d+)$`)

// Parse parses a "W:H" string into a reduced Key.
func Parse(s string) (Key, error) {
	m := keyPattern.FindStringSubmatch(s)
	if m == nil {
		return Key{}, fmt.Errorf("invalid aspect ratio %q, expected a form like 16:9", s)
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	return Reduce(w, h)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
