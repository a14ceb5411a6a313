package g2b

import (
	"time"

	"github.com/rotisserie/eris"
)

// StampLayout is the compact minute-precision timestamp format the bid
// notice API uses for its inquiry range parameters.
const StampLayout = "200601021504"

// Window is one begin/end inquiry range.
type Window struct {
	Begin time.Time
	End   time.Time
}

// BeginStamp formats the window start in the API's compact form.
func (w Window) BeginStamp() string { return w.Begin.Format(StampLayout) }

// EndStamp formats the window end in the API's compact form.
func (w Window) EndStamp() string { return w.End.Format(StampLayout) }

// ParseStamp parses a compact YYYYMMDDHHmm timestamp.
func ParseStamp(s string) (time.Time, error) {
	t, err := time.Parse(StampLayout, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "g2b: parse stamp %q", s)
	}
	return t, nil
}

// DefaultWindow returns the trailing 24-hour inquiry range ending at now.
func DefaultWindow(now time.Time) Window {
	now = now.Truncate(time.Minute)
	return Window{Begin: now.Add(-24 * time.Hour), End: now}
}

// SplitWindows chunks [begin, end] into contiguous, non-overlapping windows
// of at most chunkDays each. Windows are minute-granular: each one starts
// one minute after the previous end, so no boundary minute is queried
// twice. The last window may be shorter. The API rejects ranges wider than
// its limit with result code 07, so callers retry with a smaller chunkDays.
func SplitWindows(begin, end time.Time, chunkDays int) []Window {
	if chunkDays <= 0 {
		chunkDays = 7
	}
	begin = begin.Truncate(time.Minute)
	end = end.Truncate(time.Minute)
	if end.Before(begin) {
		return nil
	}

	chunk := time.Duration(chunkDays) * 24 * time.Hour
	var windows []Window
	cur := begin
	for !cur.After(end) {
		stop := cur.Add(chunk)
		if stop.After(end) {
			stop = end
		}
		windows = append(windows, Window{Begin: cur, End: stop})
		if !stop.Before(end) {
			break
		}
		cur = stop.Add(time.Minute)
	}
	return windows
}
