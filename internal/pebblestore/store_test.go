package pebblestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreFetchUpdateRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	_, err = s.Fetch(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Update(ctx, "k", []byte("v")))
	got, err := s.Fetch(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}
