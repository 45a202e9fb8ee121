package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/dialkeeper/internal/client/config"
	"github.com/dmitrijs2005/dialkeeper/internal/client/repositories/blobs"
	"github.com/dmitrijs2005/dialkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/dialkeeper/internal/client/session"
	"github.com/dmitrijs2005/dialkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlatform accepts alice/pw on the profile and autologin endpoints.
func fakePlatform(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if !ok || u != "alice" || p != "pw" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error": "Invalid credentials"}`)
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("/api/permission/systemuser/profile/", authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id": 3, "token": "sip", "first_name": "Alice", "last_name": "Doe", "client": "/api/apprelation/client/12/"}`)
	}))
	mux.HandleFunc("/api/autologin/token/", authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"token": "portal-token"}`)
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, input string) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.PlatformURL = fakePlatform(t).URL
	cfg.DatabaseDSN = filepath.Join(t.TempDir(), "data", "dialkeeper.db")
	cfg.RequestTimeout = 2 * time.Second
	cfg.TokenRefreshInterval = 0

	app, err := NewApp(context.Background(), cfg, logging.NewDiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	var out bytes.Buffer
	app.out = &out
	app.reader = bufio.NewReader(strings.NewReader(input))
	return app, &out
}

func stubPasswords(t *testing.T, passwords ...string) {
	t.Helper()
	orig := getPassword
	t.Cleanup(func() { getPassword = orig })
	getPassword = func(io.Writer) ([]byte, error) {
		if len(passwords) == 0 {
			return nil, errors.New("no more passwords")
		}
		pw := passwords[0]
		passwords = passwords[1:]
		return []byte(pw), nil
	}
}

func TestApp_SessionLifecycle(t *testing.T) {
	stubPasswords(t, "pw", "wrong", "pw")
	app, out := newTestApp(t, "alice\n")
	ctx := context.Background()

	require.NoError(t, app.Login(ctx))
	assert.Equal(t, session.Unlocked, app.manager.State())
	assert.True(t, app.isLoggedIn())
	assert.Contains(t, out.String(), "Welcome back, Alice Doe.")
	assert.True(t, app.calls.Connected())
	assert.Equal(t, "(alice unlocked)", app.status())

	require.NoError(t, app.Refresh(ctx))
	assert.Contains(t, out.String(), "Portal token refreshed (12 chars)")

	require.NoError(t, app.Call(ctx, "100"))
	assert.Error(t, app.Call(ctx, "200"))
	assert.Contains(t, out.String(), "another call is being set up")
	require.NoError(t, app.Calls(ctx))
	assert.Contains(t, out.String(), "new calls are blocked")

	id := app.calls.Registry().List()[0].ID
	require.NoError(t, app.Hangup(ctx, id))
	require.NoError(t, app.Call(ctx, "200"))

	require.NoError(t, app.Lock(ctx))
	assert.Equal(t, session.Locked, app.manager.State())
	assert.False(t, app.calls.Connected())

	assert.Error(t, app.Unlock(ctx))
	assert.Contains(t, out.String(), "[danger] Invalid password.")
	assert.Equal(t, session.Locked, app.manager.State())

	require.NoError(t, app.Unlock(ctx))
	assert.Equal(t, session.Unlocked, app.manager.State())

	out.Reset()
	require.NoError(t, app.Status(ctx))
	assert.Equal(t, "Session: unlocked\nUser: alice\nName: Alice Doe\nCalls connected: true\n", out.String())

	require.NoError(t, app.Logout(ctx))
	assert.Equal(t, session.Anonymous, app.manager.State())
	assert.Contains(t, out.String(), "You are logged out.")
	assert.Equal(t, "(anonymous)", app.status())
}

func TestApp_LoginRejected(t *testing.T) {
	stubPasswords(t, "nope")
	app, out := newTestApp(t, "alice\n")

	err := app.Login(context.Background())

	var aerr *session.AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, session.InvalidCredentials, aerr.Kind)
	assert.Contains(t, out.String(), "[danger] Failed to login")
	assert.False(t, app.isLoggedIn())
}

func TestApp_InvalidTransitionIsPrinted(t *testing.T) {
	app, out := newTestApp(t, "")

	err := app.Lock(context.Background())
	assert.ErrorIs(t, err, session.ErrInvalidTransition)
	assert.Contains(t, out.String(), "Error: lock from anonymous")
}

func TestApp_RunRestoresLockedSession(t *testing.T) {
	stubPasswords(t, "pw", "pw")
	app, _ := newTestApp(t, "alice\n")
	require.NoError(t, app.Login(context.Background()))
	cfg := app.config
	require.NoError(t, app.Close())

	restarted, err := NewApp(context.Background(), cfg, logging.NewDiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = restarted.Close() })

	silencePrint(t)
	var out bytes.Buffer
	restarted.out = &out
	restarted.reader = bufio.NewReader(strings.NewReader("unlock\nstatus\nexit\n"))

	require.NoError(t, restarted.Run(context.Background()))
	assert.Contains(t, out.String(), "Session of alice is locked")
	assert.Contains(t, out.String(), "Vault unlocked")
	assert.Contains(t, out.String(), "Session: unlocked")
}

func TestNewBackend(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{StorageBackend: config.StorageSQLite}
	b, err := newBackend(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &metadata.SQLiteRepository{}, b)

	cfg = &config.Config{
		StorageBackend: config.StorageS3,
		S3Bucket:       "dialkeeper",
		S3Region:       "us-east-1",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3AccessKey:    "minioadmin",
		S3SecretKey:    "minioadmin",
	}
	b, err = newBackend(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &blobs.S3Repository{}, b)

	_, err = newBackend(ctx, &config.Config{StorageBackend: "ftp"}, nil)
	assert.Error(t, err)
}
