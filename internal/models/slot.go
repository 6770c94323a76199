package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/autoshorts/internal/shared"
)

// SlotKeyPrefix starts every trigger key.
const SlotKeyPrefix = "autoshorts_schedule_"

// Week lists weekdays in schedule order, Monday first.
var Week = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// ParseWeekday accepts an English weekday name in any case, or its three letter abbreviation.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, d := range Week {
		name := strings.ToLower(d.String())
		if s == name || (len(s) == 3 && strings.HasPrefix(name, s)) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("%w: unknown weekday %q", shared.ErrValidation, s)
}

// WeekdayOrder returns 0 for Monday through 6 for Sunday.
func WeekdayOrder(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// Slot is one hour of the week. Users sharing a slot share one trigger.
type Slot struct {
	Day  time.Weekday `json:"day"`
	Hour int          `json:"hour"`
}

// NewSlot parses day and validates hour.
func NewSlot(day string, hour int) (Slot, error) {
	d, err := ParseWeekday(day)
	if err != nil {
		return Slot{}, err
	}
	s := Slot{Day: d, Hour: hour}
	return s, s.Validate()
}

// SlotAt returns the slot containing t in t's location.
func SlotAt(t time.Time) Slot {
	return Slot{Day: t.Weekday(), Hour: t.Hour()}
}

func (s Slot) Validate() error {
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("%w: hour must be between 0 and 23, got %d", shared.ErrValidation, s.Hour)
	}
	if s.Day < time.Sunday || s.Day > time.Saturday {
		return fmt.Errorf("%w: invalid weekday %d", shared.ErrValidation, s.Day)
	}
	return nil
}

// Key is the deterministic trigger identifier, e.g. autoshorts_schedule_monday_9.
func (s Slot) Key() string {
	return fmt.Sprintf("%s%s_%d", SlotKeyPrefix, strings.ToLower(s.Day.String()), s.Hour)
}

func (s Slot) String() string {
	return fmt.Sprintf("%s %02d:00", s.Day, s.Hour)
}

// Less orders slots Monday first, then by hour.
func (s Slot) Less(o Slot) bool {
	if s.Day != o.Day {
		return WeekdayOrder(s.Day) < WeekdayOrder(o.Day)
	}
	return s.Hour < o.Hour
}

// ParseSlotKey reverses [Slot.Key]. A leading path such as the "\" schtasks adds is ignored.
func ParseSlotKey(key string) (Slot, error) {
	key = strings.TrimSpace(key)
	if i := strings.Index(key, SlotKeyPrefix); i >= 0 {
		key = key[i+len(SlotKeyPrefix):]
	} else {
		return Slot{}, fmt.Errorf("%w: %q is not a schedule key", shared.ErrValidation, key)
	}

	day, hourStr, ok := strings.Cut(key, "_")
	if !ok {
		return Slot{}, fmt.Errorf("%w: malformed schedule key %q", shared.ErrValidation, key)
	}
	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return Slot{}, fmt.Errorf("%w: malformed hour in schedule key %q", shared.ErrValidation, key)
	}
	return NewSlot(day, hour)
}
