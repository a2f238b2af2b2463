package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/DFY-Network/pawnshop_layer/internal/app/escrow"
	"github.com/DFY-Network/pawnshop_layer/internal/app/events"
	"github.com/DFY-Network/pawnshop_layer/internal/app/exchange"
	"github.com/DFY-Network/pawnshop_layer/internal/app/ledger"
	"github.com/DFY-Network/pawnshop_layer/internal/app/metrics"
	evaluationsvc "github.com/DFY-Network/pawnshop_layer/internal/app/services/evaluation"
	hubsvc "github.com/DFY-Network/pawnshop_layer/internal/app/services/hub"
	lendingsvc "github.com/DFY-Network/pawnshop_layer/internal/app/services/lending"
	reputationsvc "github.com/DFY-Network/pawnshop_layer/internal/app/services/reputation"
	"github.com/DFY-Network/pawnshop_layer/internal/app/storage"
	"github.com/DFY-Network/pawnshop_layer/internal/app/storage/memory"
	"github.com/DFY-Network/pawnshop_layer/internal/app/system"
	"github.com/DFY-Network/pawnshop_layer/pkg/logger"
)

// EngineAccount is the custody account the escrow manager and the lending
// engine hold value under on the ledgers.
const EngineAccount = "pawnshop-engine"

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Hub        storage.HubStore
	Assets     storage.AssetStore
	Lending    storage.LendingStore
	Reputation storage.ReputationStore
}

// Ledgers encapsulates the external token ledgers. Nil ledgers default to the
// in-memory implementations, which suit tests and local development.
type Ledgers struct {
	Fungible    ledger.Fungible
	NonFungible ledger.NonFungible
	Rates       exchange.RateSource
}

// Application ties the engines together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Hub        *hubsvc.Service
	Evaluation *evaluationsvc.Service
	Lending    *lendingsvc.Service
	Reputation *reputationsvc.Service
	Escrow     *escrow.Manager
	Bus        *events.Bus
}

// New builds a fully initialised application with the provided stores and
// ledgers.
func New(stores Stores, ledgers Ledgers, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Hub == nil {
		stores.Hub = mem
	}
	if stores.Assets == nil {
		stores.Assets = mem
	}
	if stores.Lending == nil {
		stores.Lending = mem
	}
	if stores.Reputation == nil {
		stores.Reputation = mem
	}

	if ledgers.Fungible == nil {
		ledgers.Fungible = ledger.NewMemoryFungible()
	}
	if ledgers.NonFungible == nil {
		ledgers.NonFungible = ledger.NewMemoryNonFungible()
	}
	if ledgers.Rates == nil {
		httpClient := &http.Client{Timeout: 10 * time.Second}
		if endpoint := strings.TrimSpace(os.Getenv("EXCHANGE_RATE_URL")); endpoint != "" {
			source, err := exchange.NewHTTPSource(httpClient, endpoint, os.Getenv("EXCHANGE_RATE_KEY"), log)
			if err != nil {
				log.WithError(err).Warn("configure exchange rate source")
				ledgers.Rates = exchange.NewStatic()
			} else {
				ledgers.Rates = source
			}
		} else {
			log.Warn("EXCHANGE_RATE_URL not set; using static exchange rates")
			ledgers.Rates = exchange.NewStatic()
		}
	}

	manager := system.NewManager()
	bus := events.NewBus(0)
	bus.Subscribe(func(rec events.Record) {
		metrics.RecordTransition(string(rec.EntityKind), rec.NewState)
	})

	esc := escrow.NewManager(ledgers.Fungible, EngineAccount, log)

	hubService := hubsvc.New(stores.Hub, bus, log)
	reputationService := reputationsvc.New(stores.Reputation, bus, log)
	reputationService.AddWhitelistedCaller(evaluationsvc.CallerName)
	reputationService.AddWhitelistedCaller(lendingsvc.CallerName)

	evaluationService := evaluationsvc.New(stores.Assets, hubService, esc, ledgers.NonFungible, bus, reputationService, log)
	lendingService := lendingsvc.New(stores.Lending, hubService, ledgers.Fungible, ledgers.NonFungible, ledgers.Rates, EngineAccount, bus, reputationService, log)

	for _, name := range []string{"hub", "evaluation", "lending", "reputation"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	return &Application{
		manager:    manager,
		log:        log,
		Hub:        hubService,
		Evaluation: evaluationService,
		Lending:    lendingService,
		Reputation: reputationService,
		Escrow:     esc,
		Bus:        bus,
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
