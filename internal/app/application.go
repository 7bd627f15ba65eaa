package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Goodisoft/vestearning/internal/app/notify"
	confirmationsvc "github.com/Goodisoft/vestearning/internal/app/services/confirmation"
	maturitysvc "github.com/Goodisoft/vestearning/internal/app/services/maturity"
	referralsvc "github.com/Goodisoft/vestearning/internal/app/services/referral"
	"github.com/Goodisoft/vestearning/internal/app/storage"
	"github.com/Goodisoft/vestearning/internal/app/storage/memory"
	"github.com/Goodisoft/vestearning/internal/app/system"
	"github.com/Goodisoft/vestearning/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users        storage.UserStore
	Plans        storage.PlanStore
	Investments  storage.InvestmentStore
	Transactions storage.TransactionStore
	Wallets      storage.WalletStore
	Settings     storage.SettingsStore
}

// Options tunes the engine wiring.
type Options struct {
	// SweepInterval drives the maturity sweeper; zero keeps the default.
	SweepInterval time.Duration
	// SweepSchedule is an optional cron expression overriding the interval.
	SweepSchedule string
	// SweepLock serializes sweeps across processes when set.
	SweepLock maturitysvc.SweepLock
	// Notifier delivers user notifications; nil falls back to logging.
	Notifier notify.Notifier
}

// Application ties the engine services together and manages their
// lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Stores       Stores
	Confirmation *confirmationsvc.Service
	Maturity     *maturitysvc.Engine
	Referral     *referralsvc.Distributor
	Sweeper      *maturitysvc.Sweeper
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Plans == nil {
		stores.Plans = mem
	}
	if stores.Investments == nil {
		stores.Investments = mem
	}
	if stores.Transactions == nil {
		stores.Transactions = mem
	}
	if stores.Wallets == nil {
		stores.Wallets = mem
	}
	if stores.Settings == nil {
		stores.Settings = mem
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(log)
	}

	manager := system.NewManager()

	distributor := referralsvc.NewDistributor(stores.Users, stores.Transactions, stores.Wallets, notifier, log)
	confirmation := confirmationsvc.New(stores.Users, stores.Plans, stores.Investments, stores.Transactions, stores.Wallets, stores.Settings, distributor, notifier, log)
	engine := maturitysvc.NewEngine(stores.Investments, stores.Transactions, stores.Wallets, notifier, log)

	sweeper := maturitysvc.NewSweeper(engine, log).WithInterval(opts.SweepInterval)
	if opts.SweepSchedule != "" {
		if err := sweeper.WithSchedule(opts.SweepSchedule); err != nil {
			return nil, err
		}
	}
	if opts.SweepLock != nil {
		sweeper.WithLock(opts.SweepLock)
	}

	if err := manager.Register(system.NoopService{ServiceName: "confirmation"}); err != nil {
		return nil, fmt.Errorf("register confirmation service: %w", err)
	}
	if err := manager.Register(sweeper); err != nil {
		return nil, fmt.Errorf("register %s: %w", sweeper.Name(), err)
	}

	return &Application{
		manager:      manager,
		log:          log,
		Stores:       stores,
		Confirmation: confirmation,
		Maturity:     engine,
		Referral:     distributor,
		Sweeper:      sweeper,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
