package zipwriter

import "time"

// dosDateTime encodes t as the MS-DOS date and time fields ZIP local
// and central headers both carry (PKWARE APPNOTE section 4.4.6), the
// inverse of the msDosTimeToTime decoder this package's ancestor used
// on the read side. The format has no timezone of its own, so t is
// interpreted in its own Location exactly as given.
func dosDateTime(t time.Time) (date, dtime uint16) {
	if t.IsZero() {
		t = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if y := t.Year(); y < 1980 {
		t = time.Date(1980, 1, 1, 0, 0, 0, 0, t.Location())
	} else if y > 2107 {
		t = time.Date(2107, 12, 31, 23, 59, 58, 0, t.Location())
	}

	date = uint16((t.Year()-1980)<<9 | int(t.Month())<<5 | t.Day())
	dtime = uint16(t.Hour()<<11 | t.Minute()<<5 | t.Second()/2)
	return date, dtime
}
