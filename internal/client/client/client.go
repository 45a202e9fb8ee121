package client

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/dialkeeper/internal/client/models"
)

const (
	ProfilePath        = "api/permission/systemuser/profile/"
	AutologinTokenPath = "api/autologin/token/"
)

// Response is a raw API response: the HTTP status and the undecoded body.
type Response struct {
	Status int
	Data   json.RawMessage
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client is the platform API as seen by the session manager.
type Client interface {
	// SetupClient installs basic-auth credentials for subsequent requests.
	SetupClient(username, password string)
	// ClearClient removes the credentials.
	ClearClient()
	Get(ctx context.Context, path string) (*Response, error)
	Profile(ctx context.Context) (*models.Profile, error)
	AutologinToken(ctx context.Context) (string, error)
}
