package auth

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Pairup/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoSubject = errors.New("token has no subject")
	ErrEmptyUID  = errors.New("empty uid")
	ErrNoSecret  = errors.New("jwt secret not configured")
)

// JWT verifies HS256 bearer tokens. It implements core.Authenticator and
// never fails: anything unverifiable resolves to an anonymous identity.
type JWT struct{ secret []byte }

func New(secret string) *JWT { return &JWT{secret: []byte(secret)} }

func (j *JWT) Resolve(_ context.Context, credential string) domain.Identity {
	if credential == "" {
		return domain.Anonymous()
	}
	p, err := j.Verify(credential)
	if err != nil {
		log.Warn().Err(err).Str("module", "auth.jwt").Msg("token rejected, continuing anonymous")
		return domain.Anonymous()
	}
	return domain.Authenticated(p)
}

// Verify checks the signature and expiry and returns the principal from
// the sub claim, or the id claim when sub is absent.
func (j *JWT) Verify(tok string) (domain.Principal, error) {
	if len(j.secret) == 0 {
		return domain.Principal{}, ErrNoSecret
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(token *jwt.Token) (any, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Principal{}, err
	}
	uid, _ := claims["sub"].(string)
	if uid == "" {
		uid, _ = claims["id"].(string)
	}
	if uid == "" || len(uid) > domain.MaxUserIDLen {
		return domain.Principal{}, ErrNoSubject
	}
	email, _ := claims["email"].(string)
	return domain.Principal{ID: domain.UserID(uid), Email: email}, nil
}

// Sign issues a token for p with the given TTL.
func (j *JWT) Sign(p domain.Principal, ttl time.Duration) (string, error) {
	if p.ID == "" {
		return "", ErrEmptyUID
	}
	if len(j.secret) == 0 {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": string(p.ID),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if p.Email != "" {
		claims["email"] = p.Email
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(j.secret)
}
