package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopReporter_RoundTrip(t *testing.T) {
	r := NewNoopReporter()
	assert.False(t, r.IsActive())

	id := r.AddTask("myapp.AppImage", KindDownload, 1000, "starting", "", 1, 1)
	require.NotEmpty(t, id)
	assert.Contains(t, id, "dl_")

	completed := int64(500)
	r.UpdateTask(id, &completed, nil, nil)

	info, ok := r.GetTaskInfo(id)
	require.True(t, ok)
	assert.Equal(t, int64(500), info.Completed)
	assert.Equal(t, int64(1000), info.Total)

	r.FinishTask(id, true, "done")
	_, ok = r.GetTaskInfo(id)
	assert.True(t, ok)
}

func TestAddTask_IDsAreNamespacedByKind(t *testing.T) {
	r := NewNoopReporter()
	dl := r.AddTask("a.AppImage", KindDownload, 0, "", "", 0, 0)
	vf := r.AddTask("a.AppImage", KindVerification, 0, "", "", 0, 0)
	assert.Contains(t, dl, "dl_")
	assert.Contains(t, vf, "vf_")
	assert.NotEqual(t, dl, vf)
}

func TestAddTask_CollisionFreeUnderConcurrency(t *testing.T) {
	r := NewNoopReporter()
	const n = 2000
	ids := make([]string, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			ids[i] = r.AddTask("same-name.AppImage", KindDownload, 0, "", "", 0, 0)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, id := range ids {
		require.False(t, seen[id], "duplicate task ID generated: %s", id)
		seen[id] = true
	}
}

func TestIDCache_ClearYieldsFreshIDOnReuse(t *testing.T) {
	c := newIDCache(10)
	first := "dl_1_same-name"
	require.False(t, c.add(first))
	require.True(t, c.add(first)) // collision detected

	c.clear()
	require.False(t, c.add(first)) // after clear, same ID accepted as fresh
}

func TestSlugify(t *testing.T) {
	got := slugify("MyApp 1.2.3 x86_64!!.AppImage")
	assert.Equal(t, "myapp-1.2.3-x86_64-.appimage", got)
	assert.NotContains(t, got, " ")
	assert.Equal(t, "task", slugify(""))
}
