package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/efreitasn/bilateralexchange/internal/domain"
	"github.com/efreitasn/bilateralexchange/internal/engine"
	"github.com/efreitasn/bilateralexchange/internal/store"
)

// ErrTransferFailed wraps a failure of the TransferSink. The state change
// that produced the transfers has been rolled back when it is returned.
var ErrTransferFailed = errors.New("transfer_failed")

// Registry is the read side of the host chain the service consults.
type Registry interface {
	engine.MarkerRegistry
	engine.ScopeRegistry
	engine.AttributeRegistry
}

// TransferSink executes transfer instructions on the host. funds moves from
// sender into contract custody first; either everything happens or nothing.
type TransferSink interface {
	Execute(sender string, funds domain.Coins, transfers domain.Transfers) error
}

// Caller identifies who sent a command and what payment came with it.
type Caller struct {
	Sender string
	Funds  domain.Coins
}

// Result is returned by every successful command.
type Result struct {
	Ask        *domain.AskOrder   `json:"ask,omitempty"`
	Bid        *domain.BidOrder   `json:"bid,omitempty"`
	Settlement *engine.Settlement `json:"settlement,omitempty"`
	Transfers  domain.Transfers   `json:"transfers"`
}

// Service is the command and query surface of the exchange. Commands run one
// at a time; each one either commits its order changes and transfers
// together or leaves everything as it was.
type Service struct {
	mu        sync.Mutex
	store     store.Store
	registry  Registry
	sink      TransferSink
	validator *engine.MatchValidator
	executor  *engine.Executor
	logger    *slog.Logger
}

// New creates a Service. sink may be nil, in which case transfers are only
// returned to the caller.
func New(st store.Store, reg Registry, sink TransferSink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     st,
		registry:  reg,
		sink:      sink,
		validator: engine.NewMatchValidator(reg, reg),
		executor:  engine.NewExecutor(reg, reg),
		logger:    logger,
	}
}

// commit writes cs and then hands the transfers to the sink. A sink failure
// reverts cs.
func (s *Service) commit(cs *store.ChangeSet, c Caller, transfers domain.Transfers) error {
	if err := s.store.Commit(cs); err != nil {
		return err
	}
	if s.sink == nil {
		return nil
	}
	if err := s.sink.Execute(c.Sender, c.Funds, transfers); err != nil {
		if rbErr := s.store.Commit(cs.Inverse()); rbErr != nil {
			s.logger.Error("failed to roll back order changes",
				"sender", c.Sender,
				"transfer_error", err,
				"error", rbErr,
			)
			return fmt.Errorf("%w: %v (rollback failed: %v)", ErrTransferFailed, err, rbErr)
		}
		s.logger.Warn("transfers rejected, order changes rolled back",
			"sender", c.Sender,
			"transfers", len(transfers),
			"error", err,
		)
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

func (s *Service) settings() (*domain.Settings, error) {
	st, err := s.store.GetSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return st, nil
}

func requireNoFunds(c Caller, action string) error {
	if len(c.Funds) > 0 {
		return fmt.Errorf("%w: %s does not accept funds", domain.ErrInvalidFunds, action)
	}
	return nil
}

func requireFunds(c Caller, action string) (domain.Coins, error) {
	if len(c.Funds) == 0 {
		return nil, fmt.Errorf("%w: %s requires funds", domain.ErrInvalidFunds, action)
	}
	funds, err := c.Funds.Merge()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidFunds, err)
	}
	if len(funds) == 0 {
		return nil, fmt.Errorf("%w: %s requires non-zero funds", domain.ErrInvalidFunds, action)
	}
	return funds, nil
}
