// Package clock предоставляет внедряемый источник времени.
package clock

import (
	"sync"
	"time"
)

// Clock возвращает текущее время. Внедряется в компоненты,
// чтобы тесты могли управлять логическим временем.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem возвращает часы на основе time.Now.
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Manual — часы с ручным управлением для тестов.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual возвращает часы, зафиксированные на указанном моменте.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t.UTC()}
}

// Now возвращает текущее логическое время.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance сдвигает логическое время вперёд на d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set устанавливает логическое время.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t.UTC()
}
