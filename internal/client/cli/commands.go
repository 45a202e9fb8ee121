package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/dialkeeper/internal/client/calls"
	"github.com/dmitrijs2005/dialkeeper/internal/client/events"
	"github.com/dmitrijs2005/dialkeeper/internal/client/session"
	"github.com/dmitrijs2005/dialkeeper/internal/shared"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// report prints errors the session manager has not already turned into a
// notification.
func (a *App) report(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, session.ErrInvalidTransition) ||
		errors.Is(err, session.ErrTransitionInProgress) ||
		errors.Is(err, calls.ErrNotConnected) ||
		errors.Is(err, calls.ErrCallInProgress) ||
		errors.Is(err, calls.ErrCallNotFound) {
		fmt.Fprintln(a.out, "Error:", err)
	}
	a.logger.Debug(ctx, "command failed", "error", err)
	return err
}

// Login prompts for credentials and publishes a login request.
func (a *App) Login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer shared.WipeByteArray(password)

	return a.report(ctx, a.bus.Publish(ctx, events.Event{
		Topic:   events.TopicLogin,
		Payload: events.Login{Username: username, Password: string(password)},
	}))
}

func (a *App) Logout(ctx context.Context) error {
	return a.report(ctx, a.bus.Publish(ctx, events.Event{Topic: events.TopicLogout}))
}

func (a *App) Lock(ctx context.Context) error {
	if err := a.manager.Lock(ctx); err != nil {
		return a.report(ctx, err)
	}
	fmt.Fprintln(a.out, "Vault locked")
	return nil
}

func (a *App) Unlock(ctx context.Context) error {
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer shared.WipeByteArray(password)

	err = a.bus.Publish(ctx, events.Event{
		Topic:   events.TopicUnlock,
		Payload: events.Unlock{Password: string(password)},
	})
	if err != nil {
		return a.report(ctx, err)
	}
	fmt.Fprintln(a.out, "Vault unlocked")
	return nil
}

// Refresh asks for a new portal token through the update-token event.
func (a *App) Refresh(ctx context.Context) error {
	return a.report(ctx, a.bus.Publish(ctx, events.Event{
		Topic: events.TopicUpdateToken,
		Payload: events.UpdateToken{Callback: func(token string, err error) {
			if err == nil {
				fmt.Fprintf(a.out, "Portal token refreshed (%d chars)\n", len(token))
			}
		}},
	}))
}

func (a *App) Status(context.Context) error {
	fmt.Fprintf(a.out, "Session: %s\n", a.manager.State())
	if user := a.manager.Username(); user != "" {
		fmt.Fprintf(a.out, "User: %s\n", user)
	}
	if name := a.store.GetString("user.realName"); name != "" {
		fmt.Fprintf(a.out, "Name: %s\n", name)
	}
	fmt.Fprintf(a.out, "Calls connected: %t\n", a.calls.Connected())
	return nil
}

func (a *App) Call(ctx context.Context, number string) error {
	c, err := a.calls.Dial(ctx, number)
	if err != nil {
		return a.report(ctx, err)
	}
	fmt.Fprintf(a.out, "Calling %s (call %s)\n", c.Number, c.ID)
	return nil
}

func (a *App) Hangup(ctx context.Context, id string) error {
	if err := a.calls.Registry().SetStatus(id, calls.StatusBye); err != nil {
		return a.report(ctx, err)
	}
	fmt.Fprintf(a.out, "Call %s ended\n", id)
	return nil
}

func (a *App) Calls(context.Context) error {
	list := a.calls.Registry().List()
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No calls")
		return nil
	}
	for _, c := range list {
		fmt.Fprintf(a.out, "%s\t%s\t%s\n", c.ID, c.Number, c.Status)
	}
	if !calls.NewCallAllowed(list) {
		fmt.Fprintln(a.out, "A call is being set up; new calls are blocked")
	}
	return nil
}
