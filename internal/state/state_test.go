package state_test

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursecal/internal/state"
)

func TestFileKVRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	kv := state.NewFileKV(dir)

	_, err := kv.Get(state.CourseDataKey)
	assert.ErrorIs(t, err, state.ErrNotFound)

	require.NoError(t, kv.Set(state.CourseDataKey, `{"list":[]}`))
	got, err := kv.Get(state.CourseDataKey)
	require.NoError(t, err)
	assert.Equal(t, `{"list":[]}`, got)

	require.NoError(t, kv.Set(state.CourseDataKey, `[]`))
	got, err = kv.Get(state.CourseDataKey)
	require.NoError(t, err)
	assert.Equal(t, `[]`, got)

	info, err := os.Stat(filepath.Join(dir, state.CourseDataKey+".json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileKVRejectsPathKeys(t *testing.T) {
	kv := state.NewFileKV(t.TempDir())
	assert.Error(t, kv.Set("../escape", "x"))
	_, err := kv.Get("")
	assert.Error(t, err)
}

func TestMemoryKV(t *testing.T) {
	kv := state.NewMemoryKV()
	_, err := kv.Get("k")
	assert.ErrorIs(t, err, state.ErrNotFound)

	require.NoError(t, kv.Set("k", "v"))
	got, err := kv.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	kv.Err = errors.New("disk on fire")
	_, err = kv.Get("k")
	assert.EqualError(t, err, "disk on fire")
}

func TestMemoryKVConcurrentUse(t *testing.T) {
	kv := state.NewMemoryKV()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, kv.Set(state.CourseDataKey, strconv.Itoa(i)))
			_, err := kv.Get(state.CourseDataKey)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	v, err := kv.Get(state.CourseDataKey)
	require.NoError(t, err)
	assert.NotEmpty(t, v)
}
