package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"aeterna.dev/aeterna/avm"
	"aeterna.dev/aeterna/internal/cadata"
	"aeterna.dev/aeterna/internal/dbutil"
	"aeterna.dev/aeterna/internal/migrations"
	"aeterna.dev/aeterna/internal/testutil"
)

func newSQL(t testing.TB) Store {
	ctx := testutil.Context(t)
	db := dbutil.NewTestDB(t)
	require.NoError(t, migrations.Migrate(ctx, db, Migration(migrations.InitialState())))
	return NewSQL(db)
}

func newMem(t testing.TB) Store {
	return NewMem()
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, mk := range map[string]func(testing.TB) Store{
		"Mem": newMem,
		"SQL": newSQL,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			fn(t, mk(t))
		})
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := testutil.Context(t)
		st := avm.NewState([]int64{1, 2, 3}, []int64{4}, 7)

		ent, err := s.Save(ctx, "a", st)
		require.NoError(t, err)
		require.Equal(t, uint64(1), ent.Seq)
		data, err := st.Marshal()
		require.NoError(t, err)
		require.Equal(t, hash(data), ent.ID)
		require.Equal(t, uint64(7), ent.PC)
		require.NotZero(t, ent.Seconds)

		actual, err := s.Load(ctx, ent.ID)
		require.NoError(t, err)
		require.Equal(t, st, *actual)

		_, err = s.Load(ctx, cadata.ID{})
		require.True(t, cadata.IsNotFound(err))
	})
}

func TestLatest(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := testutil.Context(t)
		actual, err := s.Latest(ctx, "a")
		require.NoError(t, err)
		require.Nil(t, actual)

		st1 := avm.NewState([]int64{1}, nil, 1)
		st2 := avm.NewState([]int64{2}, nil, 2)
		st3 := avm.NewState([]int64{3}, nil, 3)
		for _, x := range []struct {
			label string
			st    avm.State
		}{{"a", st1}, {"a", st2}, {"b", st3}} {
			_, err := s.Save(ctx, x.label, x.st)
			require.NoError(t, err)
		}

		actual, err = s.Latest(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, st2, *actual)
		actual, err = s.Latest(ctx, "b")
		require.NoError(t, err)
		require.Equal(t, st3, *actual)

		// the same state saved again is listed twice but stored once
		_, err = s.Save(ctx, "a", st1)
		require.NoError(t, err)
		actual, err = s.Latest(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, st1, *actual)

		ents, err := s.List(ctx, "a")
		require.NoError(t, err)
		require.Len(t, ents, 3)
		require.Equal(t, []uint64{1, 2, 4}, []uint64{ents[0].Seq, ents[1].Seq, ents[2].Seq})
		all, err := s.List(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 4)
		none, err := s.List(ctx, "c")
		require.NoError(t, err)
		require.Empty(t, none)
	})
}

func TestHooks(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := testutil.Context(t)
		hooks := avm.Hooks{
			SaveState: SaveHook(s, "main"),
			LoadState: LoadHook(s, "main"),
		}
		vm := avm.New([]avm.I{avm.Load{X: 42}, avm.Store{Addr: 0}, avm.Load{X: 7}, avm.SaveState{}, avm.Halt{}}, 16, hooks)
		vm.Run(ctx, 10)
		require.True(t, vm.Halted())

		ents, err := s.List(ctx, "main")
		require.NoError(t, err)
		require.Len(t, ents, 1)
		require.Equal(t, uint64(4), ents[0].PC)

		vm2 := avm.New([]avm.I{avm.LoadState{}, avm.Halt{}, avm.Halt{}, avm.Halt{}, avm.Load{X: 1}, avm.Add{}, avm.Halt{}}, 16, hooks)
		vm2.Run(ctx, 10)
		require.Equal(t, []int64{8}, vm2.Stack())
		require.Equal(t, int64(42), vm2.Memory()[0])
	})
}
