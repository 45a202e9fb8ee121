package calls

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/dialkeeper/internal/client/events"
	"github.com/dmitrijs2005/dialkeeper/internal/logging"
	"github.com/google/uuid"
)

var (
	ErrNotConnected   = errors.New("call subsystem is not connected")
	ErrCallInProgress = errors.New("another call is being set up")
)

// newCallID is a test seam.
var newCallID = uuid.NewString

// Service is the session-facing side of the call subsystem. It follows the
// calls.init and calls.disconnect signals; placing the calls is left to the
// telephony layer.
type Service struct {
	registry *Registry
	logger   logging.Logger

	mu        sync.RWMutex
	connected bool
	inits     int
}

func NewService(registry *Registry, logger logging.Logger) *Service {
	return &Service{registry: registry, logger: logger}
}

// Attach subscribes the service to the bus and returns a function detaching it.
func (s *Service) Attach(bus *events.Bus) func() {
	offInit := bus.Subscribe(events.TopicCallsInit, s.handleInit)
	offDisc := bus.Subscribe(events.TopicCallsDisconnect, s.handleDisconnect)
	return func() {
		offInit()
		offDisc()
	}
}

func (s *Service) handleInit(ctx context.Context, _ events.Event) error {
	s.mu.Lock()
	s.connected = true
	s.inits++
	s.mu.Unlock()

	s.logger.Info(ctx, "call services initialized")
	return nil
}

func (s *Service) handleDisconnect(ctx context.Context, ev events.Event) error {
	reconnect := false
	if d, ok := ev.Payload.(events.Disconnect); ok {
		reconnect = d.Reconnect
	}

	s.registry.Clear()
	s.mu.Lock()
	s.connected = reconnect
	s.mu.Unlock()

	s.logger.Info(ctx, "call services disconnected", "reconnect", reconnect)
	return nil
}

func (s *Service) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Inits counts calls.init signals received.
func (s *Service) Inits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inits
}

// Dial registers a new outgoing call in status new.
func (s *Service) Dial(ctx context.Context, number string) (Call, error) {
	if !s.Connected() {
		return Call{}, ErrNotConnected
	}

	c := Call{ID: newCallID(), Number: number, Status: StatusNew}
	ok, err := s.registry.AddIfAllowed(c)
	if err != nil {
		return Call{}, err
	}
	if !ok {
		return Call{}, ErrCallInProgress
	}

	s.logger.Info(ctx, "call created", "call_id", c.ID)
	return c, nil
}

func (s *Service) Registry() *Registry {
	return s.registry
}
