package pmem

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempPool(t *testing.T, size int64) *Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pool.bin")
	p, err := Create(path, &Config{Size: size, Layout: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestCreateOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.bin")

	p, err := Create(path, &Config{Size: 1 << 20, Layout: "roundtrip"})
	require.NoError(t, err)
	uuid := p.UUID()
	require.NoError(t, p.Close())

	reopened, err := Open(path, &Config{Layout: "roundtrip"})
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, uuid, reopened.UUID())
	require.Equal(t, "roundtrip", reopened.Layout())
}

func TestOpenLayoutMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.bin")
	p, err := Create(path, &Config{Size: 1 << 20, Layout: "a"})
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = Open(path, &Config{Layout: "b"})
	require.ErrorIs(t, err, ErrLayoutMismatch)
}

func TestConfigValidateRejectsTooSmall(t *testing.T) {
	cfg := &Config{Size: 1}
	require.Error(t, cfg.validate())
}

func TestPoolCloseIsIdempotent(t *testing.T) {
	p := tempPool(t, 1<<20)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}

func TestNewPoolTrueOnCreateFalseOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.bin")

	p, err := Create(path, &Config{Size: 1 << 20, Layout: "newpool"})
	require.NoError(t, err)
	require.True(t, p.NewPool())
	require.NoError(t, p.Close())

	reopened, err := Open(path, &Config{Layout: "newpool"})
	require.NoError(t, err)
	defer reopened.Close()
	require.False(t, reopened.NewPool())
}
