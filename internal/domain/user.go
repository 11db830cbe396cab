// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUserIDLen   = 36
	MaxUsernameLen = 36

	AnonymousName = "Anonymous"
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type UserID string

// Principal is a verified identity produced by the auth collaborator.
type Principal struct {
	ID    UserID `json:"id"`
	Email string `json:"email,omitempty"`
}

type identityKind uint8

const (
	kindAnonymous identityKind = iota
	kindAuthenticated
)

// Identity is either Anonymous or Authenticated(principal).
// The zero value is Anonymous.
type Identity struct {
	kind      identityKind
	principal Principal
}

func Anonymous() Identity { return Identity{} }

func Authenticated(p Principal) Identity {
	if p.ID == "" {
		return Anonymous()
	}
	return Identity{kind: kindAuthenticated, principal: p}
}

// Principal returns the attached principal and false for anonymous sessions.
func (i Identity) Principal() (Principal, bool) {
	if i.kind != kindAuthenticated {
		return Principal{}, false
	}
	return i.principal, true
}

func (i Identity) IsAnonymous() bool { return i.kind != kindAuthenticated }

// RecordID is the value persisted in match logs.
func (i Identity) RecordID() string {
	if p, ok := i.Principal(); ok {
		return string(p.ID)
	}
	return "anonymous"
}

// Display is the public face of a connection: the only user data
// ever sent to a matched partner.
type Display struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

func AnonymousDisplay() Display { return Display{Name: AnonymousName} }

// OrAnonymous fills an empty name with the generic label.
func (d Display) OrAnonymous() Display {
	if strings.TrimSpace(d.Name) == "" {
		d.Name = AnonymousName
	}
	return d
}

func ValidateUsername(username string) error {
	if len(strings.TrimSpace(username)) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	return nil
}

func (d *Display) SetName(username string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	d.Name = username
	return nil
}
