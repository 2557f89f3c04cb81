package clients

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const shareSlugAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// ShareSlugLength is the number of base-62 characters in a share link slug.
const ShareSlugLength = 12

// NewShareSlug generates a URL-safe random slug for share links using a
// cryptographically secure RNG.
func NewShareSlug() (string, error) {
	out := make([]byte, ShareSlugLength)
	max := big.NewInt(int64(len(shareSlugAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("error generating share slug: %w", err)
		}
		out[i] = shareSlugAlphabet[n.Int64()]
	}
	return string(out), nil
}
