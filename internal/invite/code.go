package invite

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// Codes look like "MF-4821": two uppercase letters, a dash, four digits.
// Short enough to read over a shoulder, large enough a space that collisions
// among live codes are rare.
var codePattern = regexp.MustCompile(`^[A-Z]{2}-[0-9]{4}$`)

// Normalize trims surrounding whitespace and uppercases the code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidFormat reports whether a normalized code matches the code grammar.
func ValidFormat(code string) bool {
	return codePattern.MatchString(code)
}

func generateCode() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	var prefix [2]byte
	for i := range prefix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", fmt.Errorf("generate code prefix: %w", err)
		}
		prefix[i] = letters[n.Int64()]
	}

	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("generate code digits: %w", err)
	}

	return fmt.Sprintf("%s-%04d", string(prefix[:]), n.Int64()), nil
}
