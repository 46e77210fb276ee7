package model

import (
	"fmt"
	"time"
)

// TimeOfDay время суток в минутах от полуночи
type TimeOfDay int

const minutesPerDay = 24 * 60

// ParseTimeOfDay разбирает строку вида "14:00"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, ErrInvalidInput)
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

// NewTimeOfDay собирает время из часов и минут
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Valid время внутри суток
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

// Duration смещение от полуночи
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// OperatingHours окно, в котором можно бронировать занятия
type OperatingHours struct {
	Open  TimeOfDay
	Close TimeOfDay
}

// Contains проверяет что интервал [start, end] целиком внутри окна
func (h OperatingHours) Contains(start, end TimeOfDay) bool {
	return start >= h.Open && end <= h.Close
}

// NewDate нормализует дату к полуночи UTC
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate разбирает дату вида "2025-01-10"
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, ErrInvalidInput)
	}
	return t, nil
}

// DateOf возвращает календарную дату момента в заданной зоне
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return NewDate(y, m, d)
}
