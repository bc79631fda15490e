package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day, held at UTC midnight.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date in t's own location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

// Today returns the current calendar date as observed in loc.
func Today(loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return NewDate(time.Now().In(loc))
}

func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner for DATE columns.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v)
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Canonical slot labels run every half hour from 09:00 to 17:30.
const (
	firstSlotHour = 9
	lastSlotHour  = 17
)

var canonicalTimeLabels = buildTimeLabels()

func buildTimeLabels() []string {
	labels := make([]string, 0, (lastSlotHour-firstSlotHour+1)*2)
	for h := firstSlotHour; h <= lastSlotHour; h++ {
		labels = append(labels, fmt.Sprintf("%02d:00", h), fmt.Sprintf("%02d:30", h))
	}
	return labels
}

// TimeLabels returns the canonical half-hour labels in chronological order.
func TimeLabels() []string {
	out := make([]string, len(canonicalTimeLabels))
	copy(out, canonicalTimeLabels)
	return out
}

func IsTimeLabel(s string) bool {
	for _, l := range canonicalTimeLabels {
		if l == s {
			return true
		}
	}
	return false
}

var altTimeLayouts = []string{"15:04", "03:04 PM", "3:04 PM", "03:04PM", "3:04PM"}

// NormalizeTimeLabel accepts a canonical label or its 12-hour form
// ("01:30 PM") and returns the canonical label.
func NormalizeTimeLabel(s string) (string, error) {
	s = strings.TrimSpace(s)
	if IsTimeLabel(s) {
		return s, nil
	}

	upper := strings.ToUpper(s)
	for _, layout := range altTimeLayouts {
		t, err := time.Parse(layout, upper)
		if err != nil {
			continue
		}
		if label := t.Format("15:04"); IsTimeLabel(label) {
			return label, nil
		}
		break
	}
	return "", fmt.Errorf("invalid time %q: must be a half-hour slot between 09:00 and 17:30", s)
}
