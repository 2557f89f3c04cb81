package clients

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vmatresu/vclip/models"
)

func testStore(t *testing.T, base string) *BlobStore {
	t.Helper()
	u, err := url.Parse(base)
	require.NoError(t, err)
	return NewBlobStore(u)
}

func TestKeyClassFollowsKeyScheme(t *testing.T) {
	clipKey := models.ClipKey("u1", "v1", 3, models.StyleOriginal, models.AspectPortrait)

	require.Equal(t, "source", keyClass(models.SourceKey("u1", "v1")))
	require.Equal(t, "clip", keyClass(clipKey))
	require.Equal(t, "thumbnail", keyClass(models.ThumbnailKey(clipKey)))
	require.Equal(t, "neural", keyClass(models.NeuralCacheKey("u1", "v1", 3)))
	require.Equal(t, "raw", keyClass(models.RawSegmentKey("u1", "v1", 3)))
	require.Equal(t, "other", keyClass("somewhere/else.bin"))
}

func TestURLForJoinsKeyOntoBase(t *testing.T) {
	b := testStore(t, "https://storage.example.com/vclip")
	require.Equal(t,
		"https://storage.example.com/vclip/sources/u1/v1/source.mp4",
		b.URLFor(models.SourceKey("u1", "v1")),
	)
}

func TestPresignPassesThroughPlainHTTP(t *testing.T) {
	b := testStore(t, "https://cdn.example.com/store")
	signed, err := b.Presign("u1/v1/clips/scene_001_original_9x16.mp4")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/store/u1/v1/clips/scene_001_original_9x16.mp4", signed)
}
