package clients

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewShareSlug(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		slug, err := NewShareSlug()
		require.NoError(t, err)
		require.Len(t, slug, ShareSlugLength)
		for _, r := range slug {
			require.True(t, strings.ContainsRune(shareSlugAlphabet, r), "unexpected rune %q", r)
		}
		require.False(t, seen[slug], "slug collision across 100 draws")
		seen[slug] = true
	}
}
