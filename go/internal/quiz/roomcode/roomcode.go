// Package roomcode generates and formats the short codes players use to join a room.
package roomcode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultLength = 6
	alphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	qrSize        = 256
)

var ErrInvalidCode = errors.New("invalid room code")

// Generate returns a random upper-case alphanumeric code of the given length.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}
	var b strings.Builder
	b.Grow(length)
	limit := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Normalize trims and upper-cases a user supplied code so lookups are case-insensitive.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Parse normalizes code and checks it only holds characters a generated code can contain.
func Parse(code string) (string, error) {
	c := Normalize(code)
	if c == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidCode)
	}
	for _, r := range c {
		if !strings.ContainsRune(alphabet, r) {
			return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
		}
	}
	return c, nil
}

// JoinURL builds the link encoded in the join QR code: <origin><path>#/?roomCode=<CODE>.
func JoinURL(origin, path, code string) string {
	origin = strings.TrimSuffix(origin, "/")
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	q := url.Values{"roomCode": []string{Normalize(code)}}
	return origin + path + "#/?" + q.Encode()
}

// QRCodePNG renders the join URL for code as a PNG with high error correction.
func QRCodePNG(origin, path, code string) ([]byte, error) {
	png, err := qrcode.Encode(JoinURL(origin, path, code), qrcode.Highest, qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return png, nil
}
