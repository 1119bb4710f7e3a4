package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Interval is the number of hours between runs. Zero means the job only runs
// when triggered.
type Interval int

const (
	None     Interval = 0
	Hourly   Interval = 1
	Every2h  Interval = 2
	Every6h  Interval = 6
	Every12h Interval = 12
)

// Choices lists the supported intervals in display order.
var Choices = []Interval{None, Hourly, Every2h, Every6h, Every12h}

// ErrInvalidInterval is returned by Parse for unsupported intervals.
var ErrInvalidInterval = errors.New("schedule: unsupported interval")

var parser = cron.NewParser(cron.Descriptor)

// Valid reports whether i is one of Choices.
func (i Interval) Valid() bool {
	for _, c := range Choices {
		if i == c {
			return true
		}
	}
	return false
}

func (i Interval) String() string {
	switch {
	case i == None:
		return "none"
	case i == Hourly:
		return "1 hour"
	default:
		return fmt.Sprintf("%d hours", int(i))
	}
}

// Duration returns the interval as a time.Duration.
func (i Interval) Duration() time.Duration {
	return time.Duration(i) * time.Hour
}

// Descriptor returns the cron descriptor for the interval, or "" for None.
func (i Interval) Descriptor() string {
	if i == None {
		return ""
	}
	return "@every " + i.Duration().String()
}

// Next returns when a job last run at from is next due.
// It returns the zero time for None or when from is zero.
func (i Interval) Next(from time.Time) time.Time {
	if i == None || from.IsZero() || !i.Valid() {
		return time.Time{}
	}
	sched, err := parser.Parse(i.Descriptor())
	if err != nil {
		return time.Time{}
	}
	return sched.Next(from)
}

// Parse accepts an hour count ("6"), a duration ("6h") or "none".
func Parse(s string) (Interval, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "none" {
		return None, nil
	}

	var hours int
	if n, err := strconv.Atoi(s); err == nil {
		hours = n
	} else {
		d, err := time.ParseDuration(s)
		if err != nil || d%time.Hour != 0 {
			return None, fmt.Errorf("%w: %q", ErrInvalidInterval, s)
		}
		hours = int(d / time.Hour)
	}

	i := Interval(hours)
	if !i.Valid() {
		return None, fmt.Errorf("%w: %q", ErrInvalidInterval, s)
	}
	return i, nil
}
