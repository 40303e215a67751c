package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zapgo/rental-engine/logger"
)

// Service owns a Store and implements every ledger operation against it.
// Constructing one per test gives full isolation; there is no package
// state.
type Service struct {
	store  *Store
	faults *FaultInjector
	clock  func() time.Time
	newID  func() string
}

type ServiceOption func(*Service)

// WithClock fixes the service's notion of now (tests, replays).
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) { s.clock = clock }
}

// WithFaults attaches a latency/error injector.
func WithFaults(f *FaultInjector) ServiceOption {
	return func(s *Service) { s.faults = f }
}

// WithIDGenerator overrides entity id generation.
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *Service) { s.newID = newID }
}

func NewService(store *Store, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		clock: time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying store (dump, save-failure channel).
func (s *Service) Store() *Store { return s.store }

// Load hydrates the store from its snapshot slot, or seeds it on first
// run and persists the result.
func (s *Service) Load(ctx context.Context) error {
	loaded, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	if loaded {
		logger.Info("ledger loaded from snapshot")
		return nil
	}

	logger.Info("no snapshot found, seeding")
	return s.store.update(ctx, func(d *Data) error {
		s.seed(d)
		s.sweep(d, true)
		return nil
	})
}

// Reset clears the durable slot and reloads, equivalent to a first run.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	return s.Load(ctx)
}

// Reseed regenerates the synthetic dataset in place, discarding current
// contents.
func (s *Service) Reseed(ctx context.Context) error {
	return s.store.update(ctx, func(d *Data) error {
		*d = *NewData()
		s.seed(d)
		s.sweep(d, true)
		return nil
	})
}

func (s *Service) now() time.Time { return s.clock() }

func (s *Service) inject(ctx context.Context) error {
	return s.faults.Inject(ctx)
}
