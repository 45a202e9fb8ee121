package session

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/dialkeeper/internal/client/events"
)

// Adapter translates bus events into manager calls. The manager itself has
// no knowledge of the bus topics it is driven by.
type Adapter struct {
	manager *Manager
}

func NewAdapter(m *Manager) *Adapter {
	return &Adapter{manager: m}
}

// Attach subscribes to the inbound session topics and returns a function
// detaching the adapter.
func (a *Adapter) Attach(bus *events.Bus) func() {
	offs := []func(){
		bus.Subscribe(events.TopicLogin, a.handleLogin),
		bus.Subscribe(events.TopicLogout, a.handleLogout),
		bus.Subscribe(events.TopicUnlock, a.handleUnlock),
		bus.Subscribe(events.TopicUpdateToken, a.handleUpdateToken),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

func (a *Adapter) handleLogin(ctx context.Context, ev events.Event) error {
	p, ok := ev.Payload.(events.Login)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", ev.Topic, ev.Payload)
	}
	return a.manager.Login(ctx, p.Username, p.Password)
}

func (a *Adapter) handleLogout(ctx context.Context, _ events.Event) error {
	return a.manager.Logout(ctx)
}

func (a *Adapter) handleUnlock(ctx context.Context, ev events.Event) error {
	p, ok := ev.Payload.(events.Unlock)
	if !ok {
		return fmt.Errorf("%s: unexpected payload %T", ev.Topic, ev.Payload)
	}
	return a.manager.Unlock(ctx, p.Password)
}

func (a *Adapter) handleUpdateToken(ctx context.Context, ev events.Event) error {
	token, err := a.manager.RefreshToken(ctx)
	if p, ok := ev.Payload.(events.UpdateToken); ok && p.Callback != nil {
		p.Callback(token, err)
	}
	return err
}
