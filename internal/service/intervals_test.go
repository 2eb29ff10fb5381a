package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drive-schedule-service/pkg/response"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:30", want: 570},
		{in: "23:59", want: 1439},
		{in: "14:00:00", want: 840},
		{in: "25:00", wantErr: true},
		{in: "9am", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := parseClock(tc.in)
		if tc.wantErr {
			require.Error(t, err, tc.in)
			assert.ErrorIs(t, err, response.ErrValidation)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00", formatClock(0))
	assert.Equal(t, "09:05", formatClock(545))
	assert.Equal(t, "23:59", formatClock(1439))
}

func TestOverlapsHalfOpen(t *testing.T) {
	// [10:00, 11:00) vs [10:30, 11:30)
	assert.True(t, overlaps(600, 660, 630, 690))

	// touching boundaries do not overlap
	assert.False(t, overlaps(600, 660, 660, 720))
	assert.False(t, overlaps(660, 720, 600, 660))

	// containment
	assert.True(t, overlaps(600, 720, 630, 660))

	// disjoint
	assert.False(t, overlaps(600, 660, 720, 780))
}

func TestMergeIntervals(t *testing.T) {
	got := mergeIntervals([]interval{
		{600, 660},
		{540, 610},
		{660, 700},
		{800, 860},
	})

	assert.Equal(t, []interval{{540, 700}, {800, 860}}, got)
}

func TestSubtractIntervals(t *testing.T) {
	t.Run("busy splits availability", func(t *testing.T) {
		// 09:00-17:00 minus 12:00-13:00
		got := subtractIntervals([]interval{{540, 1020}}, []interval{{720, 780}})
		assert.Equal(t, []interval{{540, 720}, {780, 1020}}, got)
	})

	t.Run("busy covers availability", func(t *testing.T) {
		got := subtractIntervals([]interval{{600, 660}}, []interval{{540, 720}})
		assert.Empty(t, got)
	})

	t.Run("no busy", func(t *testing.T) {
		got := subtractIntervals([]interval{{600, 660}}, nil)
		assert.Equal(t, []interval{{600, 660}}, got)
	})

	t.Run("busy trims an edge", func(t *testing.T) {
		got := subtractIntervals([]interval{{540, 720}}, []interval{{540, 600}})
		assert.Equal(t, []interval{{600, 720}}, got)
	})
}

func TestLessonStart(t *testing.T) {
	start := lessonStart(date("2024-06-10"), 9*60+30)
	assert.Equal(t, "2024-06-10T09:30:00Z", start.Format("2006-01-02T15:04:05Z07:00"))
}
