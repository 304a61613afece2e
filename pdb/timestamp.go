package pdb

import (
	"fmt"
	"math"
	"time"
)

// PalmEpoch is the zero point of Palm OS timestamps.
var PalmEpoch = time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)

// palmEpochUnix is PalmEpoch expressed in Unix seconds (-2082844800).
var palmEpochUnix = PalmEpoch.Unix()

// FromPalmTimestamp converts a count of seconds since PalmEpoch to a UTC time.
func FromPalmTimestamp(v uint32) time.Time {
	return time.Unix(palmEpochUnix+int64(v), 0).UTC()
}

// ToPalmTimestamp converts t to seconds since PalmEpoch. Sub-second precision
// is dropped. Times before PalmEpoch, or too late to fit in 32 bits
// (after 2040-02-06T06:28:15Z), return ErrTimestampRange.
func ToPalmTimestamp(t time.Time) (uint32, error) {
	if t.Before(PalmEpoch) {
		return 0, fmt.Errorf("%w: %s is before %s", ErrTimestampRange, t.UTC().Format(time.RFC3339), PalmEpoch.Format(time.RFC3339))
	}
	secs := t.Unix() - palmEpochUnix
	if secs > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %s does not fit in 32 bits", ErrTimestampRange, t.UTC().Format(time.RFC3339))
	}
	return uint32(secs), nil
}
