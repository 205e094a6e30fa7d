package setstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemSetStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ss := NewMemSetStore()
	ok, err := ss.InSet(ctx, "bad-words", "spam")
	assert.NoError(err)
	assert.False(ok)

	ss.Put("bad-words", []string{"spam", "scam"})
	ok, err = ss.InSet(ctx, "bad-words", "spam")
	assert.NoError(err)
	assert.True(ok)

	l, err := ss.Members(ctx, "bad-words")
	assert.NoError(err)
	assert.Equal([]string{"scam", "spam"}, l)

	l, err = ss.Members(ctx, "missing")
	assert.NoError(err)
	assert.Empty(l)
}

func TestLoadFromFileJSON(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	p := filepath.Join(t.TempDir(), "sets.json")
	require.NoError(os.WriteFile(p, []byte(`{"bad-domains": ["spam.example.com", "evil.net"]}`), 0644))

	ss := NewMemSetStore()
	require.NoError(ss.LoadFromFileJSON(p))

	ok, err := ss.InSet(ctx, "bad-domains", "evil.net")
	require.NoError(err)
	require.True(ok)

	require.Error(ss.LoadFromFileJSON(filepath.Join(t.TempDir(), "nope.json")))
}
