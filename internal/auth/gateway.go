package auth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mizunoto/tankwatch/internal/db"
	"github.com/mizunoto/tankwatch/internal/localcache"
	"github.com/mizunoto/tankwatch/internal/model"
	"github.com/mizunoto/tankwatch/pkg/apperr"
)

// genericCredentialMessage is returned for both unknown usernames and wrong
// passwords so sign-in failures never reveal whether an account exists.
const genericCredentialMessage = "invalid username or password"

// Procedures are the remote verification and account procedures. The server
// side owns all hash computation and comparison.
type Procedures interface {
	VerifyUser(ctx context.Context, username, password string) (model.User, bool, error)
	CreateUser(ctx context.Context, username, password string) (string, error)
	GetUser(ctx context.Context, id string) (model.User, bool, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, bool, error)
	SetDarkMode(ctx context.Context, id string, darkMode bool) error
	GenerateRecoveryToken(ctx context.Context, userID string) (string, error)
	VerifyRecoveryToken(ctx context.Context, token string) (bool, error)
	HashPassword(ctx context.Context, password string) (string, error)
	ResetPasswordWithToken(ctx context.Context, token, newPasswordHash string) (bool, error)
}

var _ Procedures = (*db.Store)(nil)

// Gateway maintains the signed-in identity, persisting it to the local cache
// so a prior session survives a cold start.
type Gateway struct {
	procs Procedures
	cache *localcache.Store
	log   *slog.Logger

	mu      sync.Mutex
	session model.Session
	signed  bool
}

// NewGateway restores any cached session and returns a Gateway.
func NewGateway(procs Procedures, cache *localcache.Store, log *slog.Logger) *Gateway {
	g := &Gateway{procs: procs, cache: cache, log: log.With("component", "auth.gateway")}
	var session model.Session
	if cache != nil && cache.GetJSON(localcache.KeyUserSession, &session) {
		g.session = session
		g.signed = true
	}
	return g
}

// Current returns the signed-in session, if any.
func (g *Gateway) Current() (model.Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session, g.signed
}

// SignIn verifies raw credentials remotely and assembles a session. Unknown
// usernames, wrong passwords, and verification errors all yield the same
// generic message.
func (g *Gateway) SignIn(ctx context.Context, username, password string) (model.Session, error) {
	user, ok, err := g.procs.VerifyUser(ctx, username, password)
	if err != nil {
		g.log.Error("credential verification failed", "error", err)
		return model.Session{}, apperr.Wrap(apperr.CodeInvalidCredentials, genericCredentialMessage, nil)
	}
	if !ok {
		return model.Session{}, apperr.Wrap(apperr.CodeInvalidCredentials, genericCredentialMessage, nil)
	}

	session := model.Session{ID: user.ID, Username: user.Username}
	if details, found, err := g.procs.GetUser(ctx, user.ID); err == nil && found {
		session.IsAdmin = details.IsAdmin
		session.DarkMode = details.DarkMode
	}

	g.store(session)
	return session, nil
}

// SignUp creates an account after a uniqueness check. The remote side still
// enforces uniqueness, so a race between check and create surfaces as the
// same duplicate-username error.
func (g *Gateway) SignUp(ctx context.Context, username, password string) (model.Session, error) {
	if _, exists, err := g.procs.GetUserByUsername(ctx, username); err != nil {
		return model.Session{}, apperr.Wrap(apperr.CodeStorage, "account creation failed", err)
	} else if exists {
		return model.Session{}, apperr.Wrap(apperr.CodeUsernameExists, "username already exists", nil)
	}

	id, err := g.procs.CreateUser(ctx, username, password)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeUsernameExists) {
			return model.Session{}, err
		}
		return model.Session{}, apperr.Wrap(apperr.CodeStorage, "account creation failed", err)
	}

	session := model.Session{ID: id, Username: username}
	g.store(session)
	return session, nil
}

// SignOut clears the session locally. No remote call is made.
func (g *Gateway) SignOut() {
	g.mu.Lock()
	g.session = model.Session{}
	g.signed = false
	g.mu.Unlock()

	if g.cache != nil {
		g.cache.Remove(localcache.KeyUserSession)
	}
}

// ToggleDarkMode flips the display preference optimistically: the local
// session reflects the toggle even when the remote write fails, in which case
// the failure is reported to the caller.
func (g *Gateway) ToggleDarkMode(ctx context.Context) error {
	g.mu.Lock()
	if !g.signed {
		g.mu.Unlock()
		return apperr.Wrap(apperr.CodeValidation, "no signed-in user", nil)
	}
	g.session.DarkMode = !g.session.DarkMode
	session := g.session
	g.mu.Unlock()

	g.persist(session)

	if err := g.procs.SetDarkMode(ctx, session.ID, session.DarkMode); err != nil {
		g.log.Error("dark mode remote write failed", "user_id", session.ID, "error", err)
		return apperr.Wrap(apperr.CodeStorage, "preference saved locally only", err)
	}
	return nil
}

// RequestRecovery generates a single-use recovery token for a username with a
// registered contact address.
func (g *Gateway) RequestRecovery(ctx context.Context, username string) (string, error) {
	user, found, err := g.procs.GetUserByUsername(ctx, username)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeStorage, "recovery request failed", err)
	}
	if !found {
		return "", apperr.Wrap(apperr.CodeValidation, "username not found", nil)
	}
	if user.Email == "" {
		return "", apperr.Wrap(apperr.CodeValidation, "no email registered for this account", nil)
	}

	token, err := g.procs.GenerateRecoveryToken(ctx, user.ID)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeStorage, "recovery token generation failed", err)
	}
	return token, nil
}

// ResetPassword validates a recovery token and applies a new password. The
// hash is computed remotely; the token is consumed atomically on success.
func (g *Gateway) ResetPassword(ctx context.Context, token, newPassword string) error {
	valid, err := g.procs.VerifyRecoveryToken(ctx, token)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, "token verification failed", err)
	}
	if !valid {
		return apperr.Wrap(apperr.CodeInvalidToken, "invalid or expired token", nil)
	}

	hash, err := g.procs.HashPassword(ctx, newPassword)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, "password hashing failed", err)
	}

	ok, err := g.procs.ResetPasswordWithToken(ctx, token, hash)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, "password reset failed", err)
	}
	if !ok {
		return apperr.Wrap(apperr.CodeInvalidToken, "invalid or expired token", nil)
	}
	return nil
}

func (g *Gateway) store(session model.Session) {
	g.mu.Lock()
	g.session = session
	g.signed = true
	g.mu.Unlock()
	g.persist(session)
}

func (g *Gateway) persist(session model.Session) {
	if g.cache == nil {
		return
	}
	if err := g.cache.SetJSON(localcache.KeyUserSession, session); err != nil {
		g.log.Warn("session cache write failed", "error", err)
	}
}
