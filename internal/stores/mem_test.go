package stores

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"aeterna.dev/aeterna/internal/cadata"
)

func newTestMem() *Mem {
	return NewMem(func(x []byte) (ret cadata.ID) {
		copy(ret[:], x)
		return ret
	}, 16)
}

func TestMem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestMem()

	id, err := s.Post(ctx, []byte("abc"))
	require.NoError(t, err)
	yes, err := s.Exists(ctx, &id)
	require.NoError(t, err)
	require.True(t, yes)

	buf := make([]byte, s.MaxSize())
	n, err := s.Get(ctx, &id, buf)
	require.NoError(t, err)
	require.Equal(t, "abc", string(buf[:n]))

	require.NoError(t, s.Delete(ctx, &id))
	_, err = s.Get(ctx, &id, buf)
	require.True(t, cadata.IsNotFound(err))
	require.Equal(t, 0, s.Len())
}

func TestMemTooLarge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestMem()
	_, err := s.Post(ctx, make([]byte, 17))
	require.ErrorIs(t, err, cadata.ErrTooLarge)
}

func TestMemAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestMem()
	for _, x := range []string{"c", "a", "b"} {
		_, err := s.Post(ctx, []byte(x))
		require.NoError(t, err)
	}
	ids, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	for i := 1; i < len(ids); i++ {
		require.Less(t, ids[i-1].Compare(ids[i]), 0)
	}
}
