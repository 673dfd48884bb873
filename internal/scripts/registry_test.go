package scripts

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	loads map[string]int
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{loads: map[string]int{}}
}

func (f *fakeLoader) ScriptLoad(_ context.Context, source string) (string, error) {
	sum := sha1.Sum([]byte(source))
	digest := hex.EncodeToString(sum[:])
	f.loads[digest]++
	return digest, nil
}

func TestPreloadLoadsAllFour(t *testing.T) {
	loader := newFakeLoader()
	reg := NewRegistry(loader)

	count, err := reg.Preload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Len(t, reg.Digests(), 4)
}

func TestLookupLazyLoads(t *testing.T) {
	loader := newFakeLoader()
	reg := NewRegistry(loader)

	text, digest, err := reg.Lookup(context.Background(), GCRA)
	require.NoError(t, err)
	assert.NotEmpty(t, text)
	assert.NotEmpty(t, digest)
	assert.Equal(t, 1, loader.loads[digest])

	// Second lookup must not reload.
	_, digest2, err := reg.Lookup(context.Background(), GCRA)
	require.NoError(t, err)
	assert.Equal(t, digest, digest2)
	assert.Equal(t, 1, loader.loads[digest])
}

func TestLookupUnknownPolicy(t *testing.T) {
	reg := NewRegistry(newFakeLoader())
	_, _, err := reg.Lookup(context.Background(), Policy("bogus"))
	require.Error(t, err)
}

func TestPolicyValid(t *testing.T) {
	assert.True(t, GCRA.Valid())
	assert.False(t, Policy("nope").Valid())
}
