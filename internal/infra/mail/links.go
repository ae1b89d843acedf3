// Package mail delivers verification and password reset notifications.
package mail

import (
	"fmt"
	"net/url"
)

// Links builds the user-facing URLs embedded in notifications.
type Links struct {
	VerificationURL string
	ResetURL        string
}

// Verification returns the verification link carrying token.
func (l Links) Verification(token string) (string, error) {
	return withToken(l.VerificationURL, token)
}

// Reset returns the password reset link carrying token.
func (l Links) Reset(token string) (string, error) {
	return withToken(l.ResetURL, token)
}

func withToken(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse link base %q: %w", base, err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
