package instance

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := OpenBolt(filepath.Join(t.TempDir(), "instances.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("bolt", func(t *testing.T) { fn(t, newBoltStore(t)) })
	t.Run("mem", func(t *testing.T) { fn(t, NewMemStore()) })
}

func TestGetReturnsDefaultsForUnknownInstance(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		cfg, err := s.Get(42)
		require.NoError(t, err)
		assert.Equal(t, Config{Group: "last", Day: "today", Theme: "system"}, cfg)
	})
}

func TestPutGetDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		want := Config{Group: "CS-3", Day: DayTomorrow, Customized: true, Theme: ThemeNight}
		require.NoError(t, s.Put(7, want))

		got, err := s.Get(7)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		require.NoError(t, s.Delete(7))
		got, err = s.Get(7)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), got)
	})
}

func TestDeleteUnknownInstanceIsNoop(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		assert.NoError(t, s.Delete(999))
		assert.NoError(t, s.Delete(999))
	})
}

func TestUnknownValuesArePreserved(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		require.NoError(t, s.Put(3, Config{Theme: "sepia", Day: "yesterday"}))
		got, err := s.Get(3)
		require.NoError(t, err)
		assert.Equal(t, "sepia", got.Theme)
		assert.Equal(t, "yesterday", got.Day)
		assert.Equal(t, GroupAppDefault, got.Group)
	})
}

func TestIDsSortedNumerically(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		for _, id := range []ID{10, 2, 33} {
			require.NoError(t, s.Put(id, DefaultConfig()))
		}
		ids, err := s.IDs()
		require.NoError(t, err)
		assert.Equal(t, []ID{2, 10, 33}, ids)
	})
}

func TestConcurrentReadsSeeWholeRecords(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		a := Config{Group: "A-1", Day: DayToday, Theme: ThemeDay}
		b := Config{Group: "B-2", Day: DayTomorrow, Customized: true, Theme: ThemeNight, DynamicColor: true}
		require.NoError(t, s.Put(1, a))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				cfg := a
				if i%2 == 0 {
					cfg = b
				}
				assert.NoError(t, s.Put(1, cfg))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				got, err := s.Get(1)
				assert.NoError(t, err)
				if got != a && got != b {
					assert.Fail(t, fmt.Sprintf("mixed record observed: %+v", got))
				}
			}
		}()
		wg.Wait()
	})
}

func TestParseID(t *testing.T) {
	id, err := ParseID(" 17 ")
	require.NoError(t, err)
	assert.Equal(t, ID(17), id)

	_, err = ParseID("abc")
	assert.Error(t, err)
}
