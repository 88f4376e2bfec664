package journal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/envstream/internal/chunkindex"
	"github.com/annelo/envstream/internal/geom"
	"github.com/annelo/envstream/internal/journal"
	"github.com/annelo/envstream/internal/streaming"
)

func TestWriter_RoundTripAndRotation(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 1, 10, 59, 0, 0, time.UTC)
	w := journal.NewWriter(dir, "ticks").WithClock(func() time.Time { return now })

	rep := streaming.Report{
		Tick:     1,
		Position: geom.Vec3{5000, 0, 0},
		Center:   chunkindex.Key{X: 2},
		Loaded:   []chunkindex.Key{{X: 3}, {X: 4, Y: -1}},
		Evicted:  []chunkindex.Key{{X: -1}},
		Resident: 15,
		Duration: 1500 * time.Microsecond,
	}
	require.NoError(t, w.WriteReport(rep))
	rep.Tick = 2
	rep.Loaded, rep.Evicted = nil, nil
	require.NoError(t, w.WriteReport(rep))

	now = now.Add(2 * time.Minute) // next hour
	rep.Tick = 3
	require.NoError(t, w.WriteReport(rep))
	require.NoError(t, w.Close())

	first, err := journal.ReadFile(w.PathForHour("2024-05-01-10"))
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, uint64(1), first[0].Tick)
	assert.Equal(t, "2:0", first[0].Center)
	assert.Equal(t, []string{"3:0", "4:-1"}, first[0].Loaded)
	assert.Equal(t, []string{"-1:0"}, first[0].Evicted)
	assert.Equal(t, int64(1500), first[0].DurationUS)
	assert.Equal(t, [3]float64{5000, 0, 0}, first[0].Position)
	assert.Empty(t, first[1].Loaded)

	second, err := journal.ReadFile(w.PathForHour("2024-05-01-11"))
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, uint64(3), second[0].Tick)
}

func TestWriter_AppendsAfterReopen(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	w := journal.NewWriter(dir, "ticks").WithClock(clock)
	require.NoError(t, w.WriteReport(streaming.Report{Tick: 1}))
	require.NoError(t, w.Close())

	w = journal.NewWriter(dir, "ticks").WithClock(clock)
	require.NoError(t, w.WriteReport(streaming.Report{Tick: 2}))
	require.NoError(t, w.Close())

	entries, err := journal.ReadFile(w.PathForHour("2024-05-01-10"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(2), entries[1].Tick)
}

func TestWriter_EntriesReadableBeforeClose(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	w := journal.NewWriter(dir, "ticks").WithClock(func() time.Time { return now })
	defer w.Close()

	for i := 1; i <= 50; i++ {
		require.NoError(t, w.WriteReport(streaming.Report{Tick: uint64(i)}))
	}

	entries, err := journal.ReadFile(w.PathForHour("2024-05-01-10"))
	require.NoError(t, err)
	require.Len(t, entries, 50)
	assert.Equal(t, uint64(50), entries[49].Tick)
}
