// Package models defines the typed payloads exchanged with the platform API.
package models

import "strings"

// Profile is the validated result of the system-user profile endpoint.
type Profile struct {
	ID          int    `json:"id"`
	Token       string `json:"token"`
	FirstName   string `json:"first_name"`
	Preposition string `json:"preposition"`
	LastName    string `json:"last_name"`
	// Client is the raw client resource of the account, e.g.
	// "/api/apprelation/client/4242/". Empty means the account is not
	// entitled to telephony features.
	Client string `json:"client"`
}

// Entitled reports whether the account may use the telephony features.
func (p *Profile) Entitled() bool {
	return p != nil && p.Client != ""
}

// RealName joins first name, preposition and last name with single spaces,
// dropping empty segments.
func (p *Profile) RealName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.FirstName, p.Preposition, p.LastName} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// ClientID extracts the numeric characters of the raw client identifier.
func (p *Profile) ClientID() string {
	var b strings.Builder
	for _, r := range p.Client {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
