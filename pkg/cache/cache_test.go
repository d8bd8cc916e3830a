package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/types"
)

func jsonUnmarshal(data []byte, e *entry) error {
	return json.Unmarshal(data, e)
}

func jsonWriteFile(path string, e *entry) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), 1)
	require.NoError(t, err)
	return c
}

func TestPutGetRoundTrip(t *testing.T) {
	c := newTestCache(t)
	rel := types.Release{Owner: "o", Repo: "r", Version: "1.2.3", Tag: "v1.2.3"}

	require.NoError(t, c.Put("o", "r", types.ChannelStable, rel))

	got, err := c.Get("o", "r", types.ChannelStable, false)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, rel.Version, got.Version)
}

func TestGetExpiredReturnsNil(t *testing.T) {
	c := newTestCache(t)
	rel := types.Release{Owner: "o", Repo: "r", Version: "1.0.0"}
	require.NoError(t, c.Put("o", "r", types.ChannelStable, rel))

	// Force the cached_at timestamp into the past, beyond the 1h TTL.
	path := c.pathFor("o", "r", types.ChannelStable)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var e entry
	require.NoError(t, jsonUnmarshal(data, &e))
	e.CachedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, jsonWriteFile(path, &e))

	got, err := c.Get("o", "r", types.ChannelStable, false)
	require.NoError(t, err)
	require.Nil(t, got)

	// ignoreTTL bypasses the freshness check.
	got, err = c.Get("o", "r", types.ChannelStable, true)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestGetMalformedJSONDeletesFile(t *testing.T) {
	c := newTestCache(t)
	path := c.pathFor("o", "r", types.ChannelStable)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	got, err := c.Get("o", "r", types.ChannelStable, false)
	require.NoError(t, err)
	require.Nil(t, got)
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestChecksumFileRoundTripVersionMismatch(t *testing.T) {
	c := newTestCache(t)
	file := types.ChecksumFile{SourceURL: "https://x/SHA256SUMS", Filename: "SHA256SUMS", Algorithm: "sha256", Digests: map[string]string{"a.AppImage": "deadbeef"}}

	ok, err := c.StoreChecksumFile("o", "r", "1.0.0", file)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := c.GetChecksumFile("o", "r", "1.0.0", file.SourceURL)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, file.Digests, got.Digests)

	require.True(t, c.HasChecksumFile("o", "r", "1.0.0", file.SourceURL))

	// Different version for the same URL refuses the write.
	ok, err = c.StoreChecksumFile("o", "r", "2.0.0", file)
	require.NoError(t, err)
	require.False(t, ok)

	// Reading with the mismatched version returns nil.
	got, err = c.GetChecksumFile("o", "r", "2.0.0", file.SourceURL)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestAtomicWriteSurvivesCrashBetweenTempAndRename(t *testing.T) {
	c := newTestCache(t)
	rel := types.Release{Owner: "o", Repo: "r", Version: "1.0.0"}
	require.NoError(t, c.Put("o", "r", types.ChannelStable, rel))

	path := c.pathFor("o", "r", types.ChannelStable)
	originalData, err := os.ReadFile(path)
	require.NoError(t, err)

	// Simulate a crash: write a new temp file but never rename it over
	// path. The original entry must remain intact and readable.
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte("{corrupt-in-flight"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, originalData, data)

	got, err := c.Get("o", "r", types.ChannelStable, false)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "1.0.0", got.Version)
}

func TestCleanupExpired(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Put("o", "fresh", types.ChannelStable, types.Release{Version: "1.0.0"}))
	require.NoError(t, c.Put("o", "old", types.ChannelStable, types.Release{Version: "1.0.0"}))

	oldPath := c.pathFor("o", "old", types.ChannelStable)
	data, err := os.ReadFile(oldPath)
	require.NoError(t, err)
	var e entry
	require.NoError(t, jsonUnmarshal(data, &e))
	e.CachedAt = time.Now().AddDate(0, 0, -30)
	require.NoError(t, jsonWriteFile(oldPath, &e))

	removed, err := c.CleanupExpired(7)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, statErr := os.Stat(oldPath)
	require.True(t, os.IsNotExist(statErr))

	freshPath := c.pathFor("o", "fresh", types.ChannelStable)
	_, statErr = os.Stat(freshPath)
	require.NoError(t, statErr)
}

func TestStats(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Put("o", "r1", types.ChannelStable, types.Release{Version: "1.0.0"}))

	stats, err := c.Stats()
	require.NoError(t, err)
	require.Equal(t, 1, stats.Total)
	require.Equal(t, 1, stats.Fresh)
	require.Equal(t, c.dir, stats.Directory)
}

func TestCleanupExpired_IgnoresChecksumStoreFiles(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Put("o", "fresh", types.ChannelStable, types.Release{Version: "1.0.0"}))
	_, err := c.StoreChecksumFile("o", "fresh", "1.0.0", types.ChecksumFile{})
	require.NoError(t, err)

	removed, err := c.CleanupExpired(7)
	require.NoError(t, err)
	require.Equal(t, 0, removed)

	_, statErr := os.Stat(c.checksumPathFor("o", "fresh"))
	require.NoError(t, statErr)
}

func TestStats_ExcludesChecksumStoreFiles(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Put("o", "r1", types.ChannelStable, types.Release{Version: "1.0.0"}))
	_, err := c.StoreChecksumFile("o", "r1", "1.0.0", types.ChecksumFile{})
	require.NoError(t, err)

	stats, err := c.Stats()
	require.NoError(t, err)
	require.Equal(t, 1, stats.Total)
	require.Equal(t, 1, stats.Fresh)
}
