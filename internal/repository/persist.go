package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mmeshcher/factorydesk/internal/store"
)

// Restore загружает сохранённые снимки в контейнеры. Отсутствие снимка —
// нормальная ситуация первого запуска.
func (r *PostgresRepository) Restore(ctx context.Context, containers []store.Container, logger *zap.Logger) {
	for _, c := range containers {
		payload, err := r.LoadSnapshot(ctx, c.Name())
		if err != nil {
			if !errors.Is(err, ErrSnapshotNotFound) {
				logger.Error("restore snapshot failed", zap.String("store", c.Name()), zap.Error(err))
			}
			continue
		}
		if err := c.ApplySnapshot(payload); err != nil {
			logger.Error("apply stored snapshot failed", zap.String("store", c.Name()), zap.Error(err))
		}
	}
}

type snapshotSaver interface {
	SaveSnapshot(ctx context.Context, name string, payload []byte) error
}

// Persist подписывает контейнеры на сохранение снимка при каждом изменении
// и возвращает функцию отписки.
func (r *PostgresRepository) Persist(ctx context.Context, containers []store.Container, logger *zap.Logger) func() {
	return persistContainers(ctx, r, containers, logger)
}

// Записи каждого контейнера выполняет один воркер: серия изменений
// схлопывается в одну запись, а устаревший снимок никогда не перезаписывает
// более свежий. Снимок берётся в момент записи.
func persistContainers(ctx context.Context, saver snapshotSaver, containers []store.Container, logger *zap.Logger) func() {
	unsubs := make([]func(), 0, len(containers))

	for _, c := range containers {
		c := c
		kick := make(chan struct{}, 1)

		go func() {
			for range kick {
				if ctx.Err() != nil {
					return
				}
				payload, err := c.Snapshot()
				if err != nil {
					logger.Error("snapshot for persist failed", zap.String("store", c.Name()), zap.Error(err))
					continue
				}
				if err := saver.SaveSnapshot(ctx, c.Name(), payload); err != nil {
					logger.Error("persist snapshot failed", zap.String("store", c.Name()), zap.Error(err))
				}
			}
		}()

		unsub := c.Subscribe(func() {
			select {
			case kick <- struct{}{}:
			default:
			}
		})
		unsubs = append(unsubs, func() {
			unsub()
			close(kick)
		})
	}

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
