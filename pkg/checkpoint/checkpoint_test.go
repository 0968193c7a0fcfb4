package checkpoint

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	noteA = "https://www.xiaohongshu.com/explore/65a1b2c3000000001e000001"
	noteB = "https://www.xiaohongshu.com/explore/65a1b2c3000000001e000002"
)

func TestCheckpointManager(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	const name = "咖啡"

	t.Run("CreateAndLoad", func(t *testing.T) {
		mgr, err := NewManager(name)
		require.NoError(t, err)
		defer mgr.Delete()

		cp, err := mgr.Create(name, "咖啡")
		require.NoError(t, err)
		assert.Equal(t, currentVersion, cp.Version)

		loaded, err := mgr.Load()
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, "咖啡", loaded.Source)
		assert.Empty(t, loaded.Seen)
	})

	t.Run("LoadMissing", func(t *testing.T) {
		mgr, err := NewManagerAt(t.TempDir(), "missing")
		require.NoError(t, err)

		cp, err := mgr.Load()
		require.NoError(t, err)
		assert.Nil(t, cp)
	})

	t.Run("RecordNote", func(t *testing.T) {
		mgr, err := NewManagerAt(t.TempDir(), name)
		require.NoError(t, err)

		cp, err := mgr.Create(name, "咖啡")
		require.NoError(t, err)

		require.NoError(t, mgr.RecordNote(cp, noteA, "手冲"))
		require.NoError(t, mgr.RecordNote(cp, noteB, "拿铁"))
		require.NoError(t, mgr.RecordNote(cp, noteA, "手冲"))

		assert.True(t, cp.HasSeen(noteA))
		assert.False(t, cp.HasSeen("https://www.xiaohongshu.com/explore/other"))
		assert.Equal(t, 2, cp.TotalYielded)

		loaded, err := mgr.Load()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{noteA, noteB}, loaded.SeenURLs())
		assert.Equal(t, "拿铁", loaded.Seen[noteB])
	})

	t.Run("LoadOrCreate", func(t *testing.T) {
		mgr, err := NewManagerAt(t.TempDir(), name)
		require.NoError(t, err)

		cp, resumed, err := mgr.LoadOrCreate(name, "咖啡")
		require.NoError(t, err)
		assert.False(t, resumed)
		require.NoError(t, mgr.RecordNote(cp, noteA, "手冲"))

		cp, resumed, err = mgr.LoadOrCreate(name, "咖啡")
		require.NoError(t, err)
		assert.True(t, resumed)
		assert.Equal(t, 1, cp.TotalYielded)

		cp, resumed, err = mgr.LoadOrCreate(name, "茶")
		require.NoError(t, err)
		assert.False(t, resumed, "a different source starts over")
		assert.Zero(t, cp.TotalYielded)
	})

	t.Run("Delete", func(t *testing.T) {
		mgr, err := NewManagerAt(t.TempDir(), name)
		require.NoError(t, err)

		_, err = mgr.Create(name, "咖啡")
		require.NoError(t, err)
		assert.True(t, mgr.Exists())

		require.NoError(t, mgr.Delete())
		assert.False(t, mgr.Exists())
		assert.NoError(t, mgr.Delete(), "deleting twice is fine")
	})

	t.Run("AtomicWrite", func(t *testing.T) {
		mgr, err := NewManagerAt(t.TempDir(), name)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				mgr.Save(&Checkpoint{Name: name, Source: "咖啡", TotalYielded: n, Seen: map[string]string{}})
			}(i)
		}
		wg.Wait()

		loaded, err := mgr.Load()
		require.NoError(t, err)
		require.NotNil(t, loaded, "checkpoint corrupted after concurrent saves")
	})

	t.Run("BackupCheckpoint", func(t *testing.T) {
		mgr, err := NewManagerAt(t.TempDir(), name)
		require.NoError(t, err)

		cp, err := mgr.Create(name, "咖啡")
		require.NoError(t, err)
		cp.TotalYielded = 42
		require.NoError(t, mgr.Save(cp))

		require.NoError(t, mgr.BackupCheckpoint())
		_, err = os.Stat(mgr.Path() + ".backup")
		assert.NoError(t, err)
	})
}

func TestNewManagerUsesDataHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_DATA_HOME", home)
	t.Setenv("HOME", home)

	mgr, err := NewManager("profile 5f/x")
	require.NoError(t, err)
	assert.Contains(t, mgr.Path(), "checkpoints")
	assert.Equal(t, "profile_5f_x.checkpoint.json", filepath.Base(mgr.Path()))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "default", fileName("  "))
	assert.Equal(t, "咖啡", fileName("咖啡"))
	assert.Equal(t, "a_b_c", fileName("a/b:c"))
}
