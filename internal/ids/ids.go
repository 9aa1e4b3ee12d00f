package ids

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// CodeAlphabet omits 0/O and 1/I so pickup codes read unambiguously.
// Its length (32) divides 256, so byte-mod selection stays uniform.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const CodeLength = 6

// Generator produces order identifiers and pickup codes.
type Generator struct{}

func NewGenerator() Generator { return Generator{} }

// OrderID returns a random (version 4) UUID string.
func (Generator) OrderID() string {
	return uuid.NewString()
}

// ShortCode returns a CodeLength display code. Collisions are acceptable.
func (Generator) ShortCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = CodeAlphabet[int(b)%len(CodeAlphabet)]
	}
	return string(buf), nil
}
