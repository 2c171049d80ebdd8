package chrono

import (
	"time"
	_ "time/tzdata"
)

var paris *time.Location

func init() {
	var err error
	paris, err = time.LoadLocation("Europe/Paris")
	if err != nil {
		panic(err)
	}
}

// Paris returns a [*time.Location] for Europe/Paris, the timezone every portal date is expressed in.
func Paris() *time.Location {
	return paris
}

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time in Europe/Paris.
	Now() time.Time
	// Location returns the timezone Now is expressed in.
	Location() *time.Location
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct{}

// NewStandardTime is the constructor of StandardTime.
func NewStandardTime() StandardTime {
	return StandardTime{}
}

func (StandardTime) Now() time.Time {
	return time.Now().In(paris)
}

func (StandardTime) Location() *time.Location {
	return paris
}

// FixedTime is a TimeAPI frozen at a single instant, used wherever a deterministic clock is needed.
type FixedTime struct {
	At time.Time
}

func (f FixedTime) Now() time.Time {
	return f.At.In(paris)
}

func (FixedTime) Location() *time.Location {
	return paris
}
