// Package events is the process-wide publish/subscribe bus connecting
// foreground triggers to the session manager, and the session manager to the
// call subsystem and the notification surface.
package events

import "time"

// Inbound topics, handled by the session adapter.
const (
	TopicLogin       = "login"
	TopicLogout      = "logout"
	TopicUnlock      = "unlock"
	TopicUpdateToken = "update-token"
)

// Outbound topics, published by the session manager.
const (
	TopicNotify          = "notify"
	TopicCallsInit       = "calls.init"
	TopicCallsDisconnect = "calls.disconnect"
)

// Event is a message on the bus. Payload holds one of the types below, or
// nil for topics without data.
type Event struct {
	Topic   string
	Payload any
}

type Login struct {
	Username string
	Password string
}

type Unlock struct {
	Password string
}

// UpdateToken asks for a fresh portal token; Callback receives the result.
type UpdateToken struct {
	Callback func(token string, err error)
}

type Disconnect struct {
	Reconnect bool
}

// Notification types.
const (
	NotifyInfo    = "info"
	NotifySuccess = "success"
	NotifyWarning = "warning"
	NotifyDanger  = "danger"
)

type Notify struct {
	Icon    string
	Message string
	Type    string
	// Timeout of zero leaves the presentation default.
	Timeout time.Duration
}
