package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/dialkeeper/internal/client/calls"
	"github.com/dmitrijs2005/dialkeeper/internal/client/client"
	"github.com/dmitrijs2005/dialkeeper/internal/client/config"
	"github.com/dmitrijs2005/dialkeeper/internal/client/events"
	"github.com/dmitrijs2005/dialkeeper/internal/client/identity"
	"github.com/dmitrijs2005/dialkeeper/internal/client/repositories/blobs"
	"github.com/dmitrijs2005/dialkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/dialkeeper/internal/client/session"
	"github.com/dmitrijs2005/dialkeeper/internal/client/state"
	"github.com/dmitrijs2005/dialkeeper/internal/filex"
	"github.com/dmitrijs2005/dialkeeper/internal/logging"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	bus     *events.Bus
	store   *state.Store
	manager *session.Manager
	calls   *calls.Service
	reader  *bufio.Reader
	out     io.Writer
	detach  []func()
}

// NewApp opens the local database and wires the session stack. The caller
// must Close the returned App.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if _, err := filex.EnsureParentDir(c.DatabaseDSN); err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	backend, err := newBackend(ctx, c, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	api, err := client.NewHTTPClient(c.PlatformURL, c.RequestTimeout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{
		config: c,
		logger: logger,
		db:     db,
		bus:    events.NewBus(),
		store:  state.NewStore(backend, logger),
		calls:  calls.NewService(calls.NewRegistry(), logger),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
	a.manager = session.NewManager(api, identity.NewProvider(backend, logger), a.store, a.bus, logger)

	a.detach = append(a.detach,
		a.calls.Attach(a.bus),
		session.NewAdapter(a.manager).Attach(a.bus),
		a.bus.Subscribe(events.TopicNotify, a.printNotification),
	)
	return a, nil
}

// backend holds the state layers and the vault record side by side, so the
// salt always travels with the data sealed under it.
type backend interface {
	state.Backend
	identity.Store
}

// newBackend selects where the state layers and the vault record are stored.
func newBackend(ctx context.Context, c *config.Config, db *sql.DB) (backend, error) {
	switch c.StorageBackend {
	case "", config.StorageSQLite:
		return metadata.NewSQLiteRepository(db), nil
	case config.StorageS3:
		return blobs.NewS3Repository(ctx, blobs.Config{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Prefix:       c.S3Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

// Run restores the remembered session, starts the token refresher and runs
// the REPL until EOF or exit.
func (a *App) Run(ctx context.Context) error {
	st, err := a.manager.Restore(ctx)
	if err != nil {
		return err
	}
	if st == session.Locked {
		fmt.Fprintf(a.out, "Session of %s is locked, type 'unlock' to continue\n", a.manager.Username())
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.manager.StartTokenRefresher(ctx, a.config.TokenRefreshInterval)

	fmt.Fprintln(a.out, "dialkeeper CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader)
	return nil
}

func (a *App) Close() error {
	for _, off := range a.detach {
		off()
	}
	return a.db.Close()
}

func (a *App) isLoggedIn() bool {
	return a.manager.State().Authenticated()
}

func (a *App) status() string {
	st := a.manager.State()
	if user := a.manager.Username(); user != "" {
		return fmt.Sprintf("(%s %s)", user, st)
	}
	return fmt.Sprintf("(%s)", st)
}

func (a *App) printNotification(_ context.Context, ev events.Event) error {
	n, ok := ev.Payload.(events.Notify)
	if !ok {
		return nil
	}
	fmt.Fprintf(a.out, "[%s] %s\n", n.Type, n.Message)
	return nil
}
