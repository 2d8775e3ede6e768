package history

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Tracker {
	t.Helper()
	tr, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestRecordAndRecent(t *testing.T) {
	tr := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := tr.Record(ctx, Entry{
		CreatedAt: base,
		Input:     "/photos/a.dng",
		Output:    "/photos/a.pp3",
		Provider:  "openai",
		Model:     "gpt-4o",
		Preset:    "balanced",
		Blocks:    3,
		Applied:   2,
		Status:    StatusSuccess,
		Duration:  1500 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = tr.Record(ctx, Entry{
		CreatedAt: base.Add(time.Minute),
		Input:     "/photos/b.nef",
		Provider:  "anthropic",
		Model:     "claude",
		Status:    StatusFailed,
		Error:     "no valid search/replace blocks found",
	})
	require.NoError(t, err)

	got, err := tr.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "/photos/b.nef", got[0].Input, "newest first")
	assert.Equal(t, StatusFailed, got[0].Status)
	assert.Equal(t, "no valid search/replace blocks found", got[0].Error)

	a := got[1]
	assert.Equal(t, first.ID, a.ID)
	assert.True(t, base.Equal(a.CreatedAt))
	assert.Equal(t, "/photos/a.pp3", a.Output)
	assert.Equal(t, "balanced", a.Preset)
	assert.Equal(t, 3, a.Blocks)
	assert.Equal(t, 2, a.Applied)
	assert.Equal(t, 1500*time.Millisecond, a.Duration)

	limited, err := tr.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSummary(t *testing.T) {
	tr := openTemp(t)
	ctx := context.Background()

	s, err := tr.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, s)

	for _, st := range []string{StatusSuccess, StatusSuccess, StatusFailed} {
		_, err := tr.Record(ctx, Entry{Input: "x.dng", Provider: "openai", Model: "m", Status: st, Duration: time.Second})
		require.NoError(t, err)
	}
	s, err = tr.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.InDelta(t, 1000, s.AvgMs, 0.001)
}

func TestConcurrentRecord(t *testing.T) {
	tr := openTemp(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.Record(ctx, Entry{Input: "x.dng", Provider: "openai", Model: "m", Status: StatusSuccess})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := tr.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, s.Total)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	tr, err := Open(path)
	require.NoError(t, err)
	_, err = tr.Record(ctx, Entry{Input: "a.dng", Provider: "google", Model: "gemini", Status: StatusSuccess})
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	tr, err = Open(path)
	require.NoError(t, err)
	defer tr.Close()
	got, err := tr.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "gemini", got[0].Model)
}

func TestRecent_SubSecondOrdering(t *testing.T) {
	tr := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)

	// Recorded newest first so insertion order cannot mask the sort.
	for _, e := range []struct {
		input string
		at    time.Time
	}{
		{"later.dng", base.Add(500 * time.Millisecond)},
		{"mid.dng", base.Add(120 * time.Millisecond)},
		{"early.dng", base.Add(100 * time.Millisecond)},
		{"earliest.dng", base},
	} {
		_, err := tr.Record(ctx, Entry{CreatedAt: e.at, Input: e.input, Provider: "openai", Model: "m", Status: StatusSuccess})
		require.NoError(t, err)
	}

	got, err := tr.Recent(ctx, 4)
	require.NoError(t, err)
	require.Len(t, got, 4)
	var order []string
	for _, e := range got {
		order = append(order, e.Input)
	}
	assert.Equal(t, []string{"later.dng", "mid.dng", "early.dng", "earliest.dng"}, order)
	assert.True(t, base.Equal(got[3].CreatedAt))
}
