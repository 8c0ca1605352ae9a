package domain

import "time"

// Interval is a half-open time window [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Valid() bool {
	return !i.Start.IsZero() && !i.End.IsZero() && i.End.After(i.Start)
}

// ConflictsWith reports whether i and e overlap once e is padded by buffer
// on both ends: i.Start < e.End+B && i.End+B > e.Start.
func (i Interval) ConflictsWith(e Interval, buffer time.Duration) bool {
	return i.Start.Before(e.End.Add(buffer)) && i.End.Add(buffer).After(e.Start)
}

// FirstConflict returns the first booking in existing that blocks candidate
// for artistID. Only calendar-blocking statuses count and excludeID is
// skipped so that a booking never conflicts with itself.
func FirstConflict(candidate Interval, artistID string, existing []Booking, buffer time.Duration, excludeID string) *Booking {
	for i := range existing {
		e := &existing[i]
		if e.ID == excludeID || e.ArtistID != artistID || !e.Status.BlocksCalendar() {
			continue
		}
		if candidate.ConflictsWith(e.Interval(), buffer) {
			return e
		}
	}
	return nil
}
