package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStitchOffsetsTimestamps(t *testing.T) {
	windows := []ChunkWindow{
		{Index: 0, Start: 0, End: 100},
		{Index: 1, Start: 100, End: 200},
	}
	perChunk := [][]Segment{
		{{Start: 0, End: 4, Text: "first"}, {Start: 95, End: 99, Text: "second"}},
		{{Start: 1, End: 5, Text: "third"}, {Start: 90, End: 98, Text: "fourth"}},
	}

	got := stitch(windows, perChunk)
	require.Len(t, got, 4)
	assert.Equal(t, Segment{Start: 0, End: 4, Text: "first"}, got[0])
	assert.Equal(t, Segment{Start: 95, End: 99, Text: "second"}, got[1])
	assert.Equal(t, Segment{Start: 101, End: 105, Text: "third"}, got[2])
	assert.Equal(t, Segment{Start: 190, End: 198, Text: "fourth"}, got[3])
}

func TestStitchMonotonic(t *testing.T) {
	for _, chunkCount := range []int{1, 2, 3, 7} {
		plan, err := PlanChunks(int64(chunkCount)*20*1024*1024, float64(chunkCount)*600, 25*1024*1024)
		require.NoError(t, err)

		perChunk := make([][]Segment, plan.ChunkCount)
		for i, w := range plan.Windows {
			perChunk[i] = []Segment{
				{Start: 0, End: 2, Text: "a"},
				{Start: w.Duration() / 2, End: w.Duration()/2 + 2, Text: "b"},
				{Start: w.Duration() - 1, End: w.Duration(), Text: "c"},
			}
		}

		got := stitch(plan.Windows, perChunk)
		for i := 1; i < len(got); i++ {
			assert.GreaterOrEqual(t, got[i].Start, got[i-1].Start,
				"chunkCount=%d: segment %d start regressed", chunkCount, i)
		}
	}
}

func TestStitchTrimsBoundarySpill(t *testing.T) {
	windows := []ChunkWindow{
		{Index: 0, Start: 0, End: 60},
		{Index: 1, Start: 60, End: 120},
	}
	perChunk := [][]Segment{
		// Service reported content past the chunk's nominal window.
		{{Start: 55, End: 65, Text: "spills over"}, {Start: 62, End: 70, Text: "fully past"}},
		{{Start: 0, End: 5, Text: "next chunk owns this time"}},
	}

	got := stitch(windows, perChunk)
	require.Len(t, got, 2)

	// Spilling segment is clipped to the boundary, not allowed to overlap.
	assert.Equal(t, 55.0, got[0].Start)
	assert.Equal(t, 60.0, got[0].End)
	// Segment starting past the window is dropped entirely.
	assert.Equal(t, "next chunk owns this time", got[1].Text)
	assert.Equal(t, 60.0, got[1].Start)
}

func TestStitchIndependentOfCompletionOrder(t *testing.T) {
	// perChunk is indexed by window, so the stitch result is identical
	// however the concurrent transcriptions finished.
	windows := []ChunkWindow{
		{Index: 0, Start: 0, End: 10},
		{Index: 1, Start: 10, End: 20},
		{Index: 2, Start: 20, End: 30},
	}
	perChunk := [][]Segment{
		{{Start: 1, End: 2, Text: "one"}},
		{{Start: 3, End: 4, Text: "two"}},
		{{Start: 5, End: 6, Text: "three"}},
	}

	first := stitch(windows, perChunk)
	second := stitch(windows, perChunk)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"one", "two", "three"}, []string{first[0].Text, first[1].Text, first[2].Text})
}

func TestResultText(t *testing.T) {
	r := &Result{Segments: []Segment{
		{Start: 0, End: 1, Text: "hello"},
		{Start: 1, End: 2, Text: "world"},
	}}
	assert.Equal(t, "hello world", r.Text())
}
