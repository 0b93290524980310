package dictionary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeHistogram(t *testing.T) {
	t.Parallel()

	records := []Record{
		{Word: "apple"},
		{Word: "Avocado"},
		{Word: "banana"},
		{Word: "42nd"},
		{Word: ""},
		{Word: "éclair"},
		{Word: "cherry"},
	}

	stats := ComputeHistogram(records)

	assert.Equal(t, Histogram{"a": 2, "b": 1, "c": 1}, stats)
	assert.Equal(t, 4, stats.Total())
	assert.Equal(t, []string{"a", "b", "c"}, stats.Letters())
	assert.Zero(t, stats["z"])
}

func TestComputeHistogramIsIdempotent(t *testing.T) {
	t.Parallel()

	records := []Record{{Word: "delta"}, {Word: "Echo"}, {Word: "dune"}}
	assert.Equal(t, ComputeHistogram(records), ComputeHistogram(records))
}

func TestComputeHistogramEmpty(t *testing.T) {
	t.Parallel()

	stats := ComputeHistogram(nil)
	assert.NotNil(t, stats)
	assert.Empty(t, stats)
}
