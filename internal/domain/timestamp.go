package domain

import "time"

// TimeFormat renders item timestamps in a fixed zone, followed by a literal
// zone label. The label is appended rather than embedded in Layout because
// digits such as "3" are layout tokens.
type TimeFormat struct {
	Layout   string
	Location *time.Location
	Label    string
}

// Format renders t.
func (f TimeFormat) Format(t time.Time) string {
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	s := t.In(loc).Format(f.Layout)
	if f.Label != "" {
		s += " " + f.Label
	}
	return s
}
