package pattern

import (
	"github.com/google/uuid"

	"dex-market-bot/internal/events"
	"dex-market-bot/internal/logging"
	"dex-market-bot/internal/market"
)

// Deps are the collaborators every pattern needs
type Deps struct {
	Executor Executor
	Book     *market.Book
	Bus      *events.Bus
	Logger   *logging.Logger
}

// New builds a pattern instance for the configured variant. The returned
// pattern is PENDING; call Run to start it.
func New(cfg Config, deps Deps) (*BasePattern, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var engine signalEngine
	switch cfg.Type {
	case TypeCrossover:
		engine = newCrossoverEngine(5, 15)
	case TypeFibonacci:
		engine = newFibonacciEngine(50, 0.003)
	default:
		return nil, market.Errorf(market.CodeConfiguration, "pattern.New", "unknown pattern type %q", cfg.Type)
	}

	return &BasePattern{
		id:       uuid.NewString(),
		cfg:      cfg,
		engine:   engine,
		executor: deps.Executor,
		book:     deps.Book,
		bus:      deps.Bus,
		logger:   deps.Logger.WithComponent("pattern"),
		status:   StatusPending,
		phase:    PhaseInitialization,
	}, nil
}
