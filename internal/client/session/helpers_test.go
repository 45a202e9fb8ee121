package session

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dmitrijs2005/dialkeeper/internal/client/client"
	"github.com/dmitrijs2005/dialkeeper/internal/client/events"
	"github.com/dmitrijs2005/dialkeeper/internal/client/identity"
	"github.com/dmitrijs2005/dialkeeper/internal/client/models"
	"github.com/dmitrijs2005/dialkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/dialkeeper/internal/client/state"
	"github.com/dmitrijs2005/dialkeeper/internal/common"
	"github.com/dmitrijs2005/dialkeeper/internal/logging"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu sync.Mutex

	profile    *models.Profile
	profileErr error
	token      string
	tokenErr   error

	// started is closed (once) when Profile is entered; Profile then waits
	// for release when it is non-nil.
	started chan struct{}
	release chan struct{}

	username    string
	password    string
	hasAuth     bool
	setups      int
	clears      int
	tokenCalls  int
	startedOnce sync.Once
}

var _ client.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{
		profile: &models.Profile{
			ID:          7,
			Token:       "sip-token",
			FirstName:   "Alice",
			Preposition: "van",
			LastName:    "Dijk",
			Client:      "/api/apprelation/client/4242/",
		},
		token: "portal-1",
	}
}

func (f *fakeClient) SetupClient(username, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.username, f.password, f.hasAuth = username, password, true
	f.setups++
}

func (f *fakeClient) ClearClient() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.username, f.password, f.hasAuth = "", "", false
	f.clears++
}

func (f *fakeClient) Get(context.Context, string) (*client.Response, error) {
	return &client.Response{Status: 200}, nil
}

func (f *fakeClient) Profile(ctx context.Context) (*models.Profile, error) {
	f.mu.Lock()
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		f.startedOnce.Do(func() { close(started) })
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	p := *f.profile
	return &p, nil
}

func (f *fakeClient) AutologinToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	return f.token, f.tokenErr
}

func (f *fakeClient) auth() (string, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.username, f.password, f.hasAuth
}

func (f *fakeClient) block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = make(chan struct{})
	f.release = make(chan struct{})
}

type recorder struct {
	mu          sync.Mutex
	notes       []events.Notify
	inits       int
	disconnects []events.Disconnect
}

func (r *recorder) attach(bus *events.Bus) {
	bus.Subscribe(events.TopicNotify, func(_ context.Context, ev events.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.notes = append(r.notes, ev.Payload.(events.Notify))
		return nil
	})
	bus.Subscribe(events.TopicCallsInit, func(context.Context, events.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.inits++
		return nil
	})
	bus.Subscribe(events.TopicCallsDisconnect, func(_ context.Context, ev events.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.disconnects = append(r.disconnects, ev.Payload.(events.Disconnect))
		return nil
	})
}

func (r *recorder) lastNote() events.Notify {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notes) == 0 {
		return events.Notify{}
	}
	return r.notes[len(r.notes)-1]
}

func (r *recorder) counts() (inits, disconnects int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inits, len(r.disconnects)
}

// testBackend holds the state layers and the vault record.
type testBackend interface {
	state.Backend
	identity.Store
}

// remoteBackend is a shared object store; setErrs fails writes per key.
type remoteBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	setErrs map[string]error
}

func newRemoteBackend() *remoteBackend {
	return &remoteBackend{data: make(map[string][]byte), setErrs: make(map[string]error)}
}

func (r *remoteBackend) Get(_ context.Context, key string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (r *remoteBackend) Set(_ context.Context, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.setErrs[key]; err != nil {
		return err
	}
	r.data[key] = append([]byte(nil), value...)
	return nil
}

func (r *remoteBackend) Insert(_ context.Context, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[key]; ok {
		return common.ErrorAlreadyExists
	}
	r.data[key] = append([]byte(nil), value...)
	return nil
}

func (r *remoteBackend) failSet(key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setErrs[key] = err
}

type testEnv struct {
	m        *Manager
	client   *fakeClient
	store    *state.Store
	provider *identity.Provider
	backend  testBackend
	bus      *events.Bus
	rec      *recorder
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "dialkeeper.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvOn(metadata.NewSQLiteRepository(openTestDB(t)))
}

// newTestEnvOn builds a process whose state and vault record live in b.
func newTestEnvOn(b testBackend) *testEnv {
	env := &testEnv{
		client:   newFakeClient(),
		provider: identity.NewProvider(b, logging.NewDiscardLogger()),
		backend:  b,
		bus:      events.NewBus(),
		rec:      &recorder{},
	}
	env.rec.attach(env.bus)
	env.store = state.NewStore(b, logging.NewDiscardLogger())
	env.m = NewManager(env.client, env.provider, env.store, env.bus, logging.NewDiscardLogger())
	return env
}

// reopen simulates a process restart on the same backend.
func (e *testEnv) reopen() *testEnv {
	return newTestEnvOn(e.backend)
}

func (e *testEnv) blob(t *testing.T, key string) []byte {
	t.Helper()
	b, err := e.backend.Get(context.Background(), key)
	require.NoError(t, err)
	return b
}

func (e *testEnv) salt(t *testing.T) []byte {
	t.Helper()
	s, err := e.provider.Salt(context.Background())
	require.NoError(t, err)
	return s
}

// requireConsistent checks that the authentication flag, the manager key and
// the store key always agree.
func (e *testEnv) requireConsistent(t *testing.T) {
	t.Helper()
	authenticated := e.store.GetBool("user.authenticated")
	if authenticated && e.m.State() == Unlocked {
		require.True(t, e.m.keyLoaded(), "authenticated and unlocked without a key")
		require.True(t, e.store.Unlocked())
		return
	}
	if !authenticated {
		require.False(t, e.m.keyLoaded(), "key loaded while not authenticated")
		require.False(t, e.store.Unlocked(), "vault unlocked while not authenticated")
		require.Empty(t, e.store.GetString("user.password"))
	}
}
