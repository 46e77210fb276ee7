package clock

import (
	"sync"
	"time"
)

// Clock источник текущего времени
type Clock interface {
	Now() time.Time
}

// Real системные часы
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Manual часы, которые двигаются только вручную
type Manual struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManual создаёт часы, остановленные на момент t
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (m *Manual) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Set переставляет часы
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance сдвигает часы вперёд
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
