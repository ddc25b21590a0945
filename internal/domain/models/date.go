package models

import (
	"encoding/json"
	"fmt"
	"time"

	"EpiPulse/pkg/util"
)

// Date is a calendar day at UTC midnight, serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day.
func NewDate(t time.Time) Date {
	return Date{util.TruncateDay(t)}
}

// DateOf builds a Date from its components.
func DateOf(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD and the other layouts util.ParseDay understands.
func ParseDate(s string) (Date, error) {
	t, ok := util.ParseDay(s)
	if !ok {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return Date{t}, nil
}

func (d Date) String() string { return util.FormatDay(d.Time) }

// AddDays returns the day n days after d.
func (d Date) AddDays(n int) Date { return Date{d.Time.AddDate(0, 0, n)} }

// DaysUntil returns the signed number of days from d to o.
func (d Date) DaysUntil(o Date) int { return util.DaysBetween(d.Time, o.Time) }

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
