// Package session implements the authentication and lock state machine of the
// single user of the client.
//
// Every transition runs while holding a one-slot semaphore. Login and Unlock
// are foreground actions and fail fast with ErrTransitionInProgress when the
// slot is taken; Logout, Lock and RefreshToken wait for it. The only way to
// interrupt a waiting or running transition is the caller's context.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/dialkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/dialkeeper/internal/client/client"
	"github.com/dmitrijs2005/dialkeeper/internal/client/events"
	"github.com/dmitrijs2005/dialkeeper/internal/client/identity"
	"github.com/dmitrijs2005/dialkeeper/internal/client/models"
	"github.com/dmitrijs2005/dialkeeper/internal/client/state"
	"github.com/dmitrijs2005/dialkeeper/internal/logging"
	"github.com/dmitrijs2005/dialkeeper/internal/shared"
	"github.com/google/uuid"
)

// State tree paths written by the manager.
const (
	pathAuthenticated = "user.authenticated"
	pathUsername      = "user.username"
	pathPassword      = "user.password"
	pathClientID      = "user.client_id"
	pathUserID        = "user.id"
	pathRealName      = "user.realName"
	pathTokenSIP      = "user.tokens.sip"
	pathTokenPortal   = "user.tokens.portal"
	pathLayer         = "ui.layer"
	pathMenubar       = "ui.menubar.default"
	pathInstalled     = "app.installed"
	pathUpdated       = "app.updated"
	pathVersion       = "app.version"
	branchApp         = "app"
)

const (
	menubarActive   = "active"
	menubarInactive = "inactive"
)

const (
	layerLogin    = "login"
	layerSettings = "settings"
	layerContacts = "contacts"
)

// Identity derives and verifies vault keys.
type Identity interface {
	LoadIdentity(ctx context.Context, username string, password []byte) ([]byte, error)
	UnlockVault(ctx context.Context, username string, password []byte) ([]byte, error)
}

// Store is the part of *state.Store the manager mutates.
type Store interface {
	Load(ctx context.Context) error
	SetState(ctx context.Context, partial map[string]any, opts state.Options) error
	Get(path string) (any, bool)
	GetString(path string) string
	GetBool(path string) bool
	Unlock(ctx context.Context, key []byte) error
	Lock()
	Encrypted() bool
	Unlocked() bool
}

// Publisher delivers outbound events such as notifications and call
// subsystem triggers.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// newTransitionID and appVersion are test seams.
var (
	newTransitionID = uuid.NewString
	appVersion      = buildinfo.Version
)

// Manager owns the session and runs one transition at a time.
type Manager struct {
	client   client.Client
	identity Identity
	store    Store
	bus      Publisher
	logger   logging.Logger

	// sem is the transition slot.
	sem chan struct{}

	mu       sync.RWMutex
	state    State
	username string
	key      []byte
}

// NewManager returns a manager in the Anonymous state. Call Restore before
// the first transition to pick up a remembered session.
func NewManager(c client.Client, id Identity, store Store, bus Publisher, logger logging.Logger) *Manager {
	return &Manager{
		client:   c,
		identity: id,
		store:    store,
		bus:      bus,
		logger:   logger,
		sem:      make(chan struct{}, 1),
	}
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Username returns the user of the current or locked session, or "".
func (m *Manager) Username() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.username
}

// keyLoaded reports whether the manager holds a vault key.
func (m *Manager) keyLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.key != nil
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) tryAcquire() error {
	select {
	case m.sem <- struct{}{}:
		return nil
	default:
		return ErrTransitionInProgress
	}
}

func (m *Manager) acquire(ctx context.Context) error {
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) release() {
	<-m.sem
}

func (m *Manager) begin(ctx context.Context, op string) logging.Logger {
	l := m.logger.With("transition_id", newTransitionID(), "op", op)
	l.Debug(ctx, "transition started", "from", m.State().String())
	return l
}

// Restore loads the persisted plain layer and enters Locked when a
// remembered session with an active vault exists, Anonymous otherwise.
func (m *Manager) Restore(ctx context.Context) (State, error) {
	if err := m.acquire(ctx); err != nil {
		return m.State(), err
	}
	defer m.release()

	if err := m.store.Load(ctx); err != nil {
		return m.State(), fmt.Errorf("restore session: %w", err)
	}
	if err := m.recordInstall(ctx); err != nil {
		return m.State(), fmt.Errorf("restore session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Anonymous
	m.username = ""
	if m.store.GetBool(pathAuthenticated) && m.store.Encrypted() && m.store.GetBool(state.PathVaultActive) {
		m.state = Locked
		m.username = m.store.GetString(pathUsername)
	}
	m.logger.Info(ctx, "session restored", "state", m.state.String())
	return m.state, nil
}

// recordInstall marks the first start of a fresh installation, and the first
// start after a version change, so the next login can react to it.
func (m *Manager) recordInstall(ctx context.Context) error {
	version := appVersion()
	patch := map[string]any{pathVersion: version}
	if _, known := m.store.Get(branchApp); !known {
		patch[pathInstalled] = true
	} else if m.store.GetString(pathVersion) != version {
		patch[pathUpdated] = true
	} else {
		return nil
	}
	m.logger.Info(ctx, "installation recorded", "version", version)
	return m.store.SetState(ctx, state.Patch(patch), state.Options{Persist: true, Encrypt: state.Bool(false)})
}

// Login authenticates against the platform and opens (or creates) the vault.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	if err := m.tryAcquire(); err != nil {
		return err
	}
	defer m.release()

	from := m.State()
	if from != Anonymous && from != LoginFailed {
		return fmt.Errorf("login from %s: %w", from, ErrInvalidTransition)
	}

	log := m.begin(ctx, "login")
	m.setState(Authenticating)

	pw := []byte(password)
	defer shared.WipeByteArray(pw)

	m.client.SetupClient(username, password)
	profile, err := m.client.Profile(ctx)
	if err != nil {
		aerr := classifyLoginError(err)
		log.Warn(ctx, "login rejected", "kind", aerr.Kind.String())
		m.client.ClearClient()
		m.setState(LoginFailed)
		m.notify(ctx, events.NotifyDanger, "warning", aerr.Message)
		return aerr
	}

	if !profile.Entitled() {
		log.Warn(ctx, "login rejected", "kind", NotEntitled.String())
		m.teardown(ctx, log, false)
		m.setState(LoginFailed)
		m.notify(ctx, events.NotifyWarning, "user", msgNotEntitled)
		return &AuthError{Kind: NotEntitled, Message: msgNotEntitled}
	}

	var key []byte
	if m.store.Encrypted() {
		key, err = m.identity.UnlockVault(ctx, username, pw)
	} else {
		key, err = m.identity.LoadIdentity(ctx, username, pw)
	}
	if err != nil {
		var lerr *identity.LockError
		msg := msgVaultSetup
		if errors.As(err, &lerr) {
			err = fmt.Errorf("%w: %w", ErrVaultMismatch, err)
			msg = msgVaultMismatch
		}
		log.Error(ctx, "vault key unavailable", "error", err)
		m.client.ClearClient()
		m.setState(LoginFailed)
		m.notify(ctx, events.NotifyDanger, "lock", msg)
		return err
	}

	landing, err := m.openSession(ctx, username, password, key, profile)
	if err != nil {
		shared.WipeByteArray(key)
		log.Error(ctx, "login aborted", "error", err)
		m.client.ClearClient()
		m.setState(LoginFailed)
		m.notify(ctx, events.NotifyDanger, "lock", msgVaultSetup)
		return err
	}

	m.mu.Lock()
	m.key = key
	m.username = username
	m.state = Unlocked
	m.mu.Unlock()

	if landing == layerSettings {
		m.notify(ctx, events.NotifyInfo, "settings", msgFirstRun)
	} else {
		m.notify(ctx, events.NotifySuccess, "user", fmt.Sprintf(msgWelcome, profile.RealName()))
	}
	m.publish(ctx, events.Event{Topic: events.TopicCallsInit})
	log.Info(ctx, "login succeeded", "landing", landing)
	return nil
}

// openSession unlocks the store with key and writes the session fields. On
// failure the plain flags it touched are restored and the store is locked
// again.
func (m *Manager) openSession(ctx context.Context, username, password string, key []byte, profile *models.Profile) (string, error) {
	// Unlock and the flag update below both touch the plain layer.
	prev := state.Patch(map[string]any{
		pathAuthenticated:        m.store.GetBool(pathAuthenticated),
		pathUsername:             m.store.GetString(pathUsername),
		state.PathVaultActive:    m.store.GetBool(state.PathVaultActive),
		state.PathVaultUnlocked:  m.store.GetBool(state.PathVaultUnlocked),
		state.PathVaultEncrypted: m.store.GetBool(state.PathVaultEncrypted),
	})
	rollback := func() {
		if err := m.store.SetState(ctx, prev, state.Options{Persist: true, Encrypt: state.Bool(false)}); err != nil {
			m.logger.Error(ctx, "restoring session flags failed", "error", err)
		}
		m.store.Lock()
	}

	if err := m.store.Unlock(ctx, key); err != nil {
		m.store.Lock()
		return "", fmt.Errorf("unlock state: %w", err)
	}

	// The authentication flag stays readable without a key.
	err := m.store.SetState(ctx, state.Patch(map[string]any{
		pathAuthenticated:     true,
		pathUsername:          username,
		state.PathVaultActive: true,
	}), state.Options{Persist: true, Encrypt: state.Bool(false)})
	if err != nil {
		rollback()
		return "", fmt.Errorf("persist session flags: %w", err)
	}

	err = m.store.SetState(ctx, state.Patch(map[string]any{
		pathClientID: profile.ClientID(),
		pathUserID:   profile.ID,
		pathTokenSIP: profile.Token,
		pathRealName: profile.RealName(),
		pathPassword: password,
	}), state.Options{Persist: true})
	if err != nil {
		rollback()
		return "", fmt.Errorf("persist credentials: %w", err)
	}

	landing := layerContacts
	if m.store.GetBool(pathInstalled) {
		landing = layerSettings
	}
	err = m.store.SetState(ctx, state.Patch(map[string]any{
		pathLayer:     landing,
		pathMenubar:   menubarActive,
		pathInstalled: false,
		pathUpdated:   false,
	}), state.Options{Persist: true, Encrypt: state.Bool(false)})
	if err != nil {
		rollback()
		return "", fmt.Errorf("persist landing view: %w", err)
	}
	return landing, nil
}

// Unlock re-opens the vault of a locked session. A wrong password leaves the
// session Locked.
func (m *Manager) Unlock(ctx context.Context, password string) error {
	if err := m.tryAcquire(); err != nil {
		return err
	}
	defer m.release()

	if from := m.State(); from != Locked {
		return fmt.Errorf("unlock from %s: %w", from, ErrInvalidTransition)
	}

	log := m.begin(ctx, "unlock")
	username := m.Username()

	pw := []byte(password)
	defer shared.WipeByteArray(pw)

	key, err := m.identity.UnlockVault(ctx, username, pw)
	if err != nil {
		log.Warn(ctx, "unlock rejected", "error", err)
		m.notify(ctx, events.NotifyDanger, "lock", msgInvalidPassword)
		return err
	}

	if err := m.store.Unlock(ctx, key); err != nil {
		shared.WipeByteArray(key)
		m.store.Lock()
		log.Error(ctx, "unlock aborted", "error", err)
		m.notify(ctx, events.NotifyDanger, "lock", msgVaultSetup)
		return fmt.Errorf("unlock state: %w", err)
	}

	m.mu.Lock()
	m.key = key
	m.state = Unlocked
	m.mu.Unlock()

	m.client.SetupClient(username, password)
	m.publish(ctx, events.Event{Topic: events.TopicCallsInit})
	log.Info(ctx, "vault unlocked")
	return nil
}

// Lock drops the key and the decrypted layer. The session stays
// authenticated.
func (m *Manager) Lock(ctx context.Context) error {
	if err := m.acquire(ctx); err != nil {
		return err
	}
	defer m.release()

	if from := m.State(); from != Unlocked {
		return fmt.Errorf("lock from %s: %w", from, ErrInvalidTransition)
	}

	log := m.begin(ctx, "lock")

	err := m.store.SetState(ctx, state.Patch(map[string]any{
		state.PathVaultUnlocked: false,
	}), state.Options{Persist: true, Encrypt: state.Bool(false)})
	if err != nil {
		log.Error(ctx, "persisting lock flag failed", "error", err)
	}

	m.store.Lock()
	m.client.ClearClient()

	m.mu.Lock()
	shared.WipeByteArray(m.key)
	m.key = nil
	m.state = Locked
	m.mu.Unlock()

	m.publish(ctx, events.Event{Topic: events.TopicCallsDisconnect, Payload: events.Disconnect{Reconnect: false}})
	log.Info(ctx, "vault locked")
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	return nil
}

// Logout ends an authenticated session. The vault salt is left in place so
// the encrypted layer stays readable with the same credentials.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.acquire(ctx); err != nil {
		return err
	}
	defer m.release()

	from := m.State()
	if !from.Authenticated() {
		return fmt.Errorf("logout from %s: %w", from, ErrInvalidTransition)
	}

	log := m.begin(ctx, "logout")
	err := m.teardown(ctx, log, true)
	m.setState(Anonymous)
	m.notify(ctx, events.NotifyInfo, "user", msgFarewell)
	log.Info(ctx, "logged out")
	return err
}

// teardown clears credentials and key material and disconnects the call
// subsystem. Persistence failures are logged and returned, the in-memory
// teardown always completes.
func (m *Manager) teardown(ctx context.Context, log logging.Logger, authenticated bool) error {
	var errs []error

	if m.State() == Unlocked || m.store.Unlocked() {
		err := m.store.SetState(ctx, state.Patch(map[string]any{pathPassword: ""}),
			state.Options{Persist: true, Encrypt: state.Bool(true)})
		if err != nil {
			log.Error(ctx, "wiping stored password failed", "error", err)
			errs = append(errs, err)
		}
	}

	flags := map[string]any{
		state.PathVaultActive:   false,
		state.PathVaultUnlocked: false,
		pathLayer:               layerLogin,
		pathMenubar:             menubarInactive,
	}
	if authenticated {
		flags[pathAuthenticated] = false
	}
	err := m.store.SetState(ctx, state.Patch(flags), state.Options{Persist: true, Encrypt: state.Bool(false)})
	if err != nil {
		log.Error(ctx, "persisting logout flags failed", "error", err)
		errs = append(errs, err)
	}

	m.store.Lock()

	m.mu.Lock()
	shared.WipeByteArray(m.key)
	m.key = nil
	m.username = ""
	m.mu.Unlock()

	m.client.ClearClient()
	m.publish(ctx, events.Event{Topic: events.TopicCallsDisconnect, Payload: events.Disconnect{Reconnect: false}})

	return errors.Join(errs...)
}

// RefreshToken fetches a new portal token and stores it. Only allowed while
// Unlocked.
func (m *Manager) RefreshToken(ctx context.Context) (string, error) {
	if err := m.acquire(ctx); err != nil {
		return "", err
	}
	defer m.release()

	if from := m.State(); from != Unlocked {
		return "", fmt.Errorf("refresh token from %s: %w", from, ErrInvalidTransition)
	}

	log := m.begin(ctx, "refresh_token")
	token, err := m.client.AutologinToken(ctx)
	if err != nil {
		log.Warn(ctx, "token refresh failed", "error", err)
		return "", fmt.Errorf("refresh token: %w", err)
	}

	err = m.store.SetState(ctx, state.Patch(map[string]any{pathTokenPortal: token}), state.Options{Persist: true})
	if err != nil {
		log.Error(ctx, "persisting portal token failed", "error", err)
		return "", fmt.Errorf("refresh token: %w", err)
	}
	log.Debug(ctx, "portal token refreshed")
	return token, nil
}

func (m *Manager) notify(ctx context.Context, typ, icon, message string) {
	m.publish(ctx, events.Event{Topic: events.TopicNotify, Payload: events.Notify{
		Icon:    icon,
		Message: message,
		Type:    typ,
	}})
}

// publish is fire-and-forget; subscriber failures belong to the subscriber.
func (m *Manager) publish(ctx context.Context, ev events.Event) {
	if err := m.bus.Publish(ctx, ev); err != nil {
		m.logger.Warn(ctx, "event handler failed", "topic", ev.Topic, "error", err)
	}
}

// classifyLoginError maps an Auth Client failure to an AuthError.
func classifyLoginError(err error) *AuthError {
	if se, ok := client.IsStatusError(err); ok {
		if ts, limited := retryTimestamp(se.Message); limited {
			return &AuthError{
				Kind:    RateLimited,
				Message: fmt.Sprintf(msgRateLimited, ts),
				RetryAt: ts,
				Err:     err,
			}
		}
		return &AuthError{Kind: InvalidCredentials, Message: msgInvalidCredentials, Err: err}
	}
	if errors.Is(err, client.ErrUnauthorized) {
		return &AuthError{Kind: InvalidCredentials, Message: msgInvalidCredentials, Err: err}
	}
	return &AuthError{Kind: Unavailable, Message: msgUnavailable, Err: err}
}
