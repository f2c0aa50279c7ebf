package aetcmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()
	type testCase struct {
		Name string
		In   string
		Out  Config
		Err  bool
	}
	def := DefaultConfig()
	tcs := []testCase{
		{Name: "Empty", In: "", Out: def},
		{
			Name: "Full",
			In: `
[vm]
memory_size = 64
max_steps = 1000

[teleport]
target_host = "node-b"
secret = "hunter2"
queue_size = 4

[store]
db = "aeterna.db"
`,
			Out: Config{
				VM:       VMConfig{MemorySize: 64, MaxSteps: 1000},
				Teleport: TeleportConfig{TargetHost: "node-b", Secret: "hunter2", QueueSize: 4},
				Store:    StoreConfig{DB: "aeterna.db"},
			},
		},
		{
			Name: "Partial",
			In:   "[vm]\nmemory_size = 8\n",
			Out: func() Config {
				c := def
				c.VM.MemorySize = 8
				return c
			}(),
		},
		{Name: "UnknownKey", In: "[vm]\nmemory = 8\n", Err: true},
		{Name: "ZeroMemory", In: "[vm]\nmemory_size = 0\n", Err: true},
		{Name: "BadQueue", In: "[teleport]\nqueue_size = -1\n", Err: true},
		{Name: "Syntax", In: "[vm\n", Err: true},
	}
	for _, tc := range tcs {
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			cfg, err := ParseConfig([]byte(tc.In))
			if tc.Err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.Out, cfg)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)

	p := filepath.Join(t.TempDir(), "aeterna.toml")
	require.NoError(t, os.WriteFile(p, []byte("[store]\ndb = \"x.db\"\n"), 0o644))
	cfg, err = LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "x.db", cfg.Store.DB)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
