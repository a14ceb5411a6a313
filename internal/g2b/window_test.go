package g2b

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitWindows_Contiguous(t *testing.T) {
	begin := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.January, 20, 12, 30, 0, 0, time.UTC)

	windows := SplitWindows(begin, end, 7)
	require.NotEmpty(t, windows)

	assert.Equal(t, begin, windows[0].Begin)
	assert.Equal(t, end, windows[len(windows)-1].End)

	chunk := 7 * 24 * time.Hour
	for i, w := range windows {
		assert.False(t, w.End.Before(w.Begin), "window %d inverted", i)
		assert.LessOrEqual(t, w.End.Sub(w.Begin), chunk, "window %d too wide", i)
		if i > 0 {
			// each window starts one minute after the previous end
			assert.Equal(t, windows[i-1].End.Add(time.Minute), w.Begin, "gap before window %d", i)
		}
	}
}

func TestSplitWindows_SingleWindow(t *testing.T) {
	begin := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := begin.Add(3 * 24 * time.Hour)

	windows := SplitWindows(begin, end, 7)
	require.Len(t, windows, 1)
	assert.Equal(t, begin, windows[0].Begin)
	assert.Equal(t, end, windows[0].End)
}

func TestSplitWindows_TruncatesToMinute(t *testing.T) {
	begin := time.Date(2026, time.January, 1, 0, 0, 45, 123, time.UTC)
	end := begin.Add(time.Hour)

	windows := SplitWindows(begin, end, 7)
	require.Len(t, windows, 1)
	assert.Zero(t, windows[0].Begin.Second())
	assert.Zero(t, windows[0].End.Second())
}

func TestSplitWindows_InvertedRange(t *testing.T) {
	begin := time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)
	assert.Nil(t, SplitWindows(begin, begin.Add(-time.Hour), 7))
}

func TestWindowStamps(t *testing.T) {
	w := Window{
		Begin: time.Date(2026, time.February, 4, 9, 5, 0, 0, time.UTC),
		End:   time.Date(2026, time.February, 11, 23, 51, 0, 0, time.UTC),
	}
	assert.Equal(t, "202602040905", w.BeginStamp())
	assert.Equal(t, "202602112351", w.EndStamp())
}

func TestParseStamp(t *testing.T) {
	ts, err := ParseStamp("202602042351")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.February, 4, 23, 51, 0, 0, time.UTC), ts)

	_, err = ParseStamp("2026-02-04")
	assert.Error(t, err)
}

func TestDefaultWindow(t *testing.T) {
	now := time.Date(2026, time.February, 4, 10, 30, 25, 0, time.UTC)
	w := DefaultWindow(now)
	assert.Equal(t, now.Truncate(time.Minute), w.End)
	assert.Equal(t, 24*time.Hour, w.End.Sub(w.Begin))
}
