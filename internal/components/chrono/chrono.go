package chrono

import (
	"time"
)

var toronto *time.Location

func init() {
	var err error
	toronto, err = time.LoadLocation("America/Toronto")
	if err != nil {
		panic(err)
	}
}

// Toronto returns the [*time.Location] the portal reports dates in.
func Toronto() *time.Location {
	return toronto
}

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time in the portal's timezone.
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct{}

// NewStandardTime is the constructor of StandardTime.
func NewStandardTime() StandardTime {
	return StandardTime{}
}

func (StandardTime) Now() time.Time {
	return time.Now().In(toronto)
}

// FixedTime is a TimeAPI that always returns the same instant.
type FixedTime struct {
	Time time.Time
}

func (f FixedTime) Now() time.Time {
	return f.Time
}
