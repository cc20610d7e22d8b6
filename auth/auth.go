// Package auth signs participants up, authenticates them, and resolves a
// bearer token back to a participant, replacing the source's FastAPI
// OAuth2PasswordBearer + jose + passlib stack (original_source/
// trading_engine/auth.py) with golang-jwt/jwt/v5 and
// golang.org/x/crypto/bcrypt.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"ledger-exchange/apperr"
	"ledger-exchange/store"
)

// Service issues and verifies bearer tokens against the store's auth
// table and accounts.
type Service struct {
	store           store.Store
	secretKey       []byte
	tokenTTL        time.Duration
	startingBalance int64
	startingStock   int64
}

// New builds a Service. secretKey signs and verifies every token with
// HMAC-SHA256; tokenTTL is the fixed lifetime spec.md §4.3 gives every
// issued token.
func New(st store.Store, secretKey string, tokenTTL time.Duration, startingBalance, startingStock int64) *Service {
	return &Service{
		store:           st,
		secretKey:       []byte(secretKey),
		tokenTTL:        tokenTTL,
		startingBalance: startingBalance,
		startingStock:   startingStock,
	}
}

// claims is the JWT payload: just the subject (display name) and the
// standard expiry, matching original_source's create_token, which only
// ever put {'sub': name} plus 'exp' into the token.
type claims struct {
	jwt.RegisteredClaims
}

// Signup creates a new participant with a unique display name, seeds
// their account with the configured starting balance/stock, and returns
// their participant id.
func (s *Service) Signup(ctx context.Context, name, password string) (int64, error) {
	if name == "" || password == "" {
		return 0, apperr.New(apperr.Validation, "name and password are required")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, apperr.Wrap(apperr.InvariantViolation, "hash password", err)
	}

	var participantID int64
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		id, err := tx.CreateAuth(ctx, name, string(hashed))
		if err != nil {
			return err
		}
		if err := tx.CreateAccount(ctx, id, s.startingBalance, s.startingStock); err != nil {
			return err
		}
		participantID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	return participantID, nil
}

// Authenticate verifies name/password and issues a signed bearer token.
// Both an unknown name and a wrong password report the same
// apperr.BadCredentials, matching original_source's single "Invalid
// username or password" message — the uniform error prevents an attacker
// from learning which names are registered.
func (s *Service) Authenticate(ctx context.Context, name, password string) (string, error) {
	rec, found, err := s.store.AuthByName(ctx, name)
	if err != nil {
		return "", err
	}
	if !found {
		return "", apperr.New(apperr.BadCredentials, "invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.HashedPassword), []byte(password)); err != nil {
		return "", apperr.New(apperr.BadCredentials, "invalid username or password")
	}
	return s.issueToken(rec.Name)
}

func (s *Service) issueToken(name string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", apperr.Wrap(apperr.InvariantViolation, "sign token", err)
	}
	return signed, nil
}

// Principal identifies the caller a bearer token resolved to.
type Principal struct {
	ParticipantID int64
	Name          string
}

// ResolvePrincipal verifies tokenString and looks up the participant it
// names. Any failure — malformed token, bad signature, expired token, or
// an unknown subject — reports apperr.Unauthorized, matching
// original_source's single credentials_exception for every failure mode.
func (s *Service) ResolvePrincipal(ctx context.Context, tokenString string) (Principal, error) {
	unauthorized := apperr.New(apperr.Unauthorized, "invalid authentication credentials")

	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil || !parsed.Valid {
		return Principal{}, unauthorized
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || c.Subject == "" {
		return Principal{}, unauthorized
	}

	rec, found, err := s.store.AuthByName(ctx, c.Subject)
	if err != nil {
		return Principal{}, err
	}
	if !found {
		return Principal{}, unauthorized
	}
	return Principal{ParticipantID: rec.ParticipantID, Name: rec.Name}, nil
}
