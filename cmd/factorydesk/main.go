// Package main запускает консоль factorydesk: HTTP-сервер, цикл сверки
// платежей и движок синхронизации состояния.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/factorydesk/internal/clock"
	"github.com/mmeshcher/factorydesk/internal/config"
	"github.com/mmeshcher/factorydesk/internal/handler"
	"github.com/mmeshcher/factorydesk/internal/livesync"
	"github.com/mmeshcher/factorydesk/internal/model"
	"github.com/mmeshcher/factorydesk/internal/reconcile"
	"github.com/mmeshcher/factorydesk/internal/repository"
	"github.com/mmeshcher/factorydesk/internal/statev"
	"github.com/mmeshcher/factorydesk/internal/store"
	"github.com/mmeshcher/factorydesk/internal/syncgw"
)

// syncSettings адаптирует контейнер настроек к контракту движка синхронизации.
type syncSettings struct {
	s *store.Store[model.Settings]
}

func (a syncSettings) SyncEnabled() bool {
	return a.s.Get().SyncEnabled
}

func (a syncSettings) DisableSync() {
	a.s.Update(func(s model.Settings) model.Settings {
		s.SyncEnabled = false
		return s
	})
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	clk := clock.NewSystem()

	ordersStore := store.New("orders", model.OrdersState{})
	archiveStore := store.New("archive", model.ArchiveState{})
	invoiceStore := store.New("invoices", model.InvoiceState{})
	inventoryStore := store.New("inventory", model.InventoryState{})
	bankStore := store.New("bank", model.BankState{})
	employeeStore := store.New("employees", model.EmployeeState{})
	contractStore := store.New("contracts", model.ContractState{})
	transportStore := store.New("transport", model.TransportState{})
	calculatorStore := store.New("calculator", model.CalculatorState{})
	settingsStore := store.New("settings", model.Settings{
		TestMode:    cfg.TestMode,
		SyncEnabled: cfg.SyncAddress != "",
		AutoPayment: model.AutoPaymentSettings{
			Enabled:  cfg.StatevAddress != "",
			Interval: cfg.ReconcileInterval,
		},
	})

	containers := []store.Container{
		ordersStore, archiveStore, invoiceStore, inventoryStore,
		bankStore, employeeStore, contractStore, transportStore,
		calculatorStore, settingsStore,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Снимки прошлой сессии (заказы, настройки, контрольная точка сверки)
	// загружаются до запуска фоновых процессов.
	repo.Restore(ctx, containers, logger)

	unsubPersist := repo.Persist(ctx, containers, logger)
	defer unsubPersist()

	feed := statev.NewClient(cfg.StatevAddress, cfg.StatevAPIKey, cfg.FactoryID)
	orders := reconcile.NewOrders(ordersStore, archiveStore)
	watcher := reconcile.NewWatcher(
		feed, orders, settingsStore,
		reconcile.LogNotifier{Logger: logger},
		clk, logger,
		cfg.HomeVban, cfg.StartupDelay, cfg.ReconcileInterval,
	)

	gateway := syncgw.New(cfg.SyncAddress, cfg.SyncAPIKey, cfg.SyncTable, logger)
	engine := livesync.New(
		gateway, syncSettings{s: settingsStore}, containers,
		cfg.WorkspaceID, logger,
		livesync.Options{Interval: cfg.SyncInterval},
	)

	h := handler.NewHandler(orders, settingsStore, engine, gateway, containers, clk, logger)
	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Запуск цикла сверки платежей
	g.Go(func() error {
		watcher.Run(ctx)
		return nil
	})

	// Запуск движка синхронизации
	g.Go(func() error {
		engine.Run(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting factorydesk server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
