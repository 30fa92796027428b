// Package store реализует именованные контейнеры состояния с подпиской
// на изменения и заменой состояния целиком.
package store

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Container — контракт контейнера для движка синхронизации и слоя
// персистентности: снимок состояния, замена целиком, подписка на изменения.
type Container interface {
	Name() string
	Snapshot() ([]byte, error)
	ApplySnapshot(data []byte) error
	Subscribe(fn func()) (unsubscribe func())
}

// Store — контейнер состояния типа T. Мутации выполняются только через
// Update и Replace, подписчики уведомляются после каждой мутации.
type Store[T any] struct {
	name string

	mu     sync.RWMutex
	state  T
	subs   map[int]func()
	nextID int
}

// New создаёт контейнер с указанным именем и начальным состоянием.
func New[T any](name string, initial T) *Store[T] {
	return &Store[T]{
		name:  name,
		state: initial,
		subs:  make(map[int]func()),
	}
}

// Name возвращает имя контейнера.
func (s *Store[T]) Name() string {
	return s.name
}

// Get возвращает текущее состояние. Возвращаемое значение нельзя изменять:
// срезы внутри состояния разделяются с контейнером.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Update применяет fn к текущему состоянию и уведомляет подписчиков.
func (s *Store[T]) Update(fn func(T) T) {
	s.mu.Lock()
	s.state = fn(s.state)
	s.mu.Unlock()
	s.notify()
}

// Replace заменяет состояние целиком и уведомляет подписчиков.
func (s *Store[T]) Replace(state T) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.notify()
}

// Subscribe регистрирует обработчик изменений и возвращает функцию отписки.
func (s *Store[T]) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Snapshot возвращает сериализованный снимок состояния.
func (s *Store[T]) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.Marshal(s.state)
	if err != nil {
		return nil, fmt.Errorf("marshal %s state: %w", s.name, err)
	}
	return data, nil
}

// ApplySnapshot заменяет состояние содержимым сериализованного снимка.
func (s *Store[T]) ApplySnapshot(data []byte) error {
	var state T
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("unmarshal %s state: %w", s.name, err)
	}
	s.Replace(state)
	return nil
}

// Уведомления выполняются вне блокировки: обработчик может сам
// обратиться к контейнеру.
func (s *Store[T]) notify() {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}
