package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/types"
)

func TestLoad_ParsesEmbeddedCatalog(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.True(t, c.Len() > 0)
}

func TestLookup_CaseInsensitive(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	cfg, ok := c.Lookup("FreeTube")
	require.True(t, ok)
	assert.Equal(t, "FreeTube", cfg.Name)
	assert.Equal(t, types.SourceCatalog, cfg.Source)

	_, ok = c.Lookup("  freetube  ")
	assert.True(t, ok)
}

func TestLookup_UnknownKeyMisses(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	_, ok := c.Lookup("does-not-exist")
	assert.False(t, ok)
}

func TestParse_DefaultsNameToKeyWhenEmpty(t *testing.T) {
	c, err := parse([]byte("bare:\n  owner: o\n  repo: r\n"))
	require.NoError(t, err)
	cfg, ok := c.Lookup("bare")
	require.True(t, ok)
	assert.Equal(t, "bare", cfg.Name)
}

func TestKeys_SortedAndComplete(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	keys := c.Keys()
	assert.Equal(t, c.Len(), len(keys))
	for i := 1; i < len(keys); i++ {
		assert.LessOrEqual(t, keys[i-1], keys[i])
	}
}
