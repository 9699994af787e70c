package world

import (
	"testing"

	"github.com/annel0/blockverse/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureMeta(t *testing.T) {
	s := storage.NewMemory()

	m, err := EnsureMeta(s, Meta{Generator: "perlin", Seed: 7})
	require.NoError(t, err)
	assert.False(t, m.Created.IsZero())

	again, err := EnsureMeta(s, Meta{Generator: "perlin", Seed: 7})
	require.NoError(t, err)
	assert.True(t, m.Created.Equal(again.Created))

	_, err = EnsureMeta(s, Meta{Generator: "perlin", Seed: 8})
	assert.ErrorIs(t, err, ErrMetaMismatch)

	_, err = EnsureMeta(s, Meta{Generator: "flat", Seed: 7})
	assert.ErrorIs(t, err, ErrMetaMismatch)
}

func TestLoadMetaMissing(t *testing.T) {
	_, found, err := LoadMeta(storage.Nop{})
	require.NoError(t, err)
	assert.False(t, found)
}
