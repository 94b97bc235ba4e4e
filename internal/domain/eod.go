package domain

import "time"

// EODCutoffUTC converts a validity date to the UTC instant at which the EOD
// sweep may expire the entry. The Y/M/D of validUntil is read as a calendar
// date at the location; the cutoff is the local midnight that closes that
// trading day, expressed in UTC. The conversion runs once, at creation or
// update time, so the stored instant keeps the sweep itself timezone-agnostic.
func EODCutoffUTC(validUntil time.Time, tzOffsetMinutes int) time.Time {
	loc := time.FixedZone("", tzOffsetMinutes*60)
	cutoff := time.Date(validUntil.Year(), validUntil.Month(), validUntil.Day()+1, 0, 0, 0, 0, loc)
	return cutoff.UTC()
}
