// Package livesync реализует движок синхронизации локальных контейнеров
// состояния с удалённым key-value хранилищем.
//
// Модель согласованности — «последняя запись побеждает» на уровне целого
// снимка контейнера. Движок гасит две разновидности лишних записей:
// повторную отправку неизменившегося снимка и эхо-петлю, когда изменение,
// пришедшее из удалённого хранилища, тут же уехало бы обратно.
package livesync

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/factorydesk/internal/store"
)

const (
	defaultInterval   = 5 * time.Second
	defaultDebounce   = 500 * time.Millisecond
	defaultEchoWindow = 500 * time.Millisecond
)

// Remote описывает контракт шлюза удалённого хранилища, используемый движком.
type Remote interface {
	Probe(ctx context.Context) bool
	Get(ctx context.Context, key string) (json.RawMessage, bool)
	Upsert(ctx context.Context, key string, value any) bool
}

// SettingsSource отдаёт флаг синхронизации и умеет её долговременно отключать.
type SettingsSource interface {
	SyncEnabled() bool
	DisableSync()
}

// Envelope — запись одного контейнера в удалённом хранилище.
type Envelope struct {
	Data      json.RawMessage `json:"data"`
	ClientID  string          `json:"clientId"`
	Timestamp int64           `json:"timestamp"`
}

// Options настраивает интервалы движка. Нулевые значения заменяются
// значениями по умолчанию.
type Options struct {
	Interval   time.Duration
	Debounce   time.Duration
	EchoWindow time.Duration
}

// Engine синхронизирует набор контейнеров с удалённым хранилищем:
// дебаунс локальных изменений с отправкой наружу и периодическое
// вытягивание удалённого состояния.
type Engine struct {
	remote      Remote
	settings    SettingsSource
	stores      []store.Container
	workspaceID string
	clientID    string
	logger      *zap.Logger

	interval   time.Duration
	debounce   time.Duration
	echoWindow time.Duration

	runCtx         context.Context
	applyingRemote atomic.Bool
	wake           chan struct{}

	mu           sync.Mutex
	timers       map[string]*time.Timer
	echoTimer    *time.Timer
	lastPayloads map[string]string
}

// New создаёт движок синхронизации. Идентификатор клиента генерируется
// один раз на сессию и помечает все исходящие записи.
func New(remote Remote, settings SettingsSource, stores []store.Container, workspaceID string, logger *zap.Logger, opts Options) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.EchoWindow <= 0 {
		opts.EchoWindow = defaultEchoWindow
	}

	return &Engine{
		remote:       remote,
		settings:     settings,
		stores:       stores,
		workspaceID:  workspaceID,
		clientID:     uuid.NewString(),
		logger:       logger,
		interval:     opts.Interval,
		debounce:     opts.Debounce,
		echoWindow:   opts.EchoWindow,
		wake:         make(chan struct{}, 1),
		timers:       make(map[string]*time.Timer),
		lastPayloads: make(map[string]string),
	}
}

// ClientID возвращает идентификатор сессии.
func (e *Engine) ClientID() string {
	return e.clientID
}

// Wake инициирует внеочередной цикл вытягивания: ручной запуск
// или возврат фокуса в консоль.
func (e *Engine) Wake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Run выполняет синхронизацию до отмены контекста. Цикл живёт и при
// выключенной синхронизации: включение через настройки подхватывается
// на ближайшем такте без перезапуска процесса.
func (e *Engine) Run(ctx context.Context) {
	e.runCtx = ctx

	unsubs := make([]func(), 0, len(e.stores))
	for _, c := range e.stores {
		c := c
		unsubs = append(unsubs, c.Subscribe(func() {
			e.onChange(c)
		}))
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
		e.stopTimers()
	}()

	e.cycle(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.cycle(ctx)
		case <-e.wake:
			e.cycle(ctx)
		}
	}
}

// Один такт: проверка флага, проверка доступности хранилища, вытягивание.
// Неудачная проверка долговременно отключает синхронизацию — до тех пор,
// пока её не включат заново через настройки.
func (e *Engine) cycle(ctx context.Context) {
	if !e.settings.SyncEnabled() {
		return
	}

	if !e.remote.Probe(ctx) {
		e.logger.Info("sync storage missing, disabling sync")
		e.settings.DisableSync()
		return
	}

	e.pull(ctx)
}

// Локальное изменение: перезапускает дебаунс-таймер контейнера.
// Изменения, вызванные применением удалённого снимка, не отправляются.
func (e *Engine) onChange(c store.Container) {
	if e.applyingRemote.Load() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.timers[c.Name()]; ok {
		t.Stop()
	}
	e.timers[c.Name()] = time.AfterFunc(e.debounce, func() {
		e.push(c)
	})
}

func (e *Engine) push(c store.Container) {
	ctx := e.runCtx
	if ctx == nil || ctx.Err() != nil || !e.settings.SyncEnabled() {
		return
	}

	snap, err := c.Snapshot()
	if err != nil {
		e.logger.Error("snapshot for push failed", zap.String("store", c.Name()), zap.Error(err))
		return
	}

	e.mu.Lock()
	unchanged := e.lastPayloads[c.Name()] == string(snap)
	e.mu.Unlock()
	if unchanged {
		return
	}

	env := Envelope{
		Data:      snap,
		ClientID:  e.clientID,
		Timestamp: time.Now().UnixMilli(),
	}

	if e.remote.Upsert(ctx, e.key(c.Name()), env) {
		e.mu.Lock()
		e.lastPayloads[c.Name()] = string(snap)
		e.mu.Unlock()
	}
}

// Один проход вытягивания: контейнеры обрабатываются последовательно,
// сбой одного не мешает остальным.
func (e *Engine) pull(ctx context.Context) {
	if !e.settings.SyncEnabled() {
		return
	}

	for _, c := range e.stores {
		raw, ok := e.remote.Get(ctx, e.key(c.Name()))
		if !ok {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			e.logger.Error("malformed sync record", zap.String("store", c.Name()), zap.Error(err))
			continue
		}
		if len(env.Data) == 0 {
			continue
		}

		local, err := c.Snapshot()
		if err != nil {
			e.logger.Error("snapshot for pull failed", zap.String("store", c.Name()), zap.Error(err))
			continue
		}

		if string(env.Data) == string(local) || env.ClientID == e.clientID {
			continue
		}

		e.beginRemoteApply()
		if err := c.ApplySnapshot(env.Data); err != nil {
			e.logger.Error("apply remote snapshot failed", zap.String("store", c.Name()), zap.Error(err))
			continue
		}

		e.mu.Lock()
		e.lastPayloads[c.Name()] = string(env.Data)
		e.mu.Unlock()
	}
}

// Окно подавления эха: пока оно открыто, подписчик не реагирует
// на изменения, вызванные применением удалённого снимка.
func (e *Engine) beginRemoteApply() {
	e.applyingRemote.Store(true)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.echoTimer != nil {
		e.echoTimer.Stop()
	}
	e.echoTimer = time.AfterFunc(e.echoWindow, func() {
		e.applyingRemote.Store(false)
	})
}

func (e *Engine) stopTimers() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.timers {
		t.Stop()
	}
	if e.echoTimer != nil {
		e.echoTimer.Stop()
	}
}

func (e *Engine) key(storeName string) string {
	return "ws:" + e.workspaceID + ":" + storeName
}
