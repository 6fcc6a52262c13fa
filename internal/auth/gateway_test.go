package auth

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mizunoto/tankwatch/internal/localcache"
	"github.com/mizunoto/tankwatch/internal/model"
	"github.com/mizunoto/tankwatch/pkg/apperr"
)

type fakeProcs struct {
	users          map[string]model.User // by username
	password       string
	createErr      error
	setDarkModeErr error
	tokens         map[string]string // token -> user id
	tokenValid     bool
	resetOK        bool
}

func newFakeProcs() *fakeProcs {
	return &fakeProcs{
		users:      make(map[string]model.User),
		tokens:     make(map[string]string),
		tokenValid: true,
		resetOK:    true,
	}
}

func (f *fakeProcs) VerifyUser(_ context.Context, username, password string) (model.User, bool, error) {
	user, ok := f.users[username]
	if !ok || password != f.password {
		return model.User{}, false, nil
	}
	return user, true, nil
}

func (f *fakeProcs) CreateUser(_ context.Context, username, _ string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	if _, ok := f.users[username]; ok {
		return "", apperr.Wrap(apperr.CodeUsernameExists, "username already exists", nil)
	}
	user := model.User{ID: "id-" + username, Username: username}
	f.users[username] = user
	return user.ID, nil
}

func (f *fakeProcs) GetUser(_ context.Context, id string) (model.User, bool, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, true, nil
		}
	}
	return model.User{}, false, nil
}

func (f *fakeProcs) GetUserByUsername(_ context.Context, username string) (model.User, bool, error) {
	user, ok := f.users[username]
	return user, ok, nil
}

func (f *fakeProcs) SetDarkMode(_ context.Context, id string, darkMode bool) error {
	if f.setDarkModeErr != nil {
		return f.setDarkModeErr
	}
	for name, u := range f.users {
		if u.ID == id {
			u.DarkMode = darkMode
			f.users[name] = u
		}
	}
	return nil
}

func (f *fakeProcs) GenerateRecoveryToken(_ context.Context, userID string) (string, error) {
	token := "token-" + userID
	f.tokens[token] = userID
	return token, nil
}

func (f *fakeProcs) VerifyRecoveryToken(_ context.Context, token string) (bool, error) {
	_, ok := f.tokens[token]
	return ok && f.tokenValid, nil
}

func (f *fakeProcs) HashPassword(_ context.Context, password string) (string, error) {
	return "hashed:" + password, nil
}

func (f *fakeProcs) ResetPasswordWithToken(_ context.Context, token, _ string) (bool, error) {
	if _, ok := f.tokens[token]; !ok || !f.resetOK {
		return false, nil
	}
	delete(f.tokens, token)
	return true, nil
}

func newGateway(t *testing.T, procs Procedures) *Gateway {
	t.Helper()
	cache, err := localcache.New(t.TempDir())
	require.NoError(t, err)
	return NewGateway(procs, cache, slog.Default())
}

func TestSignIn_Success(t *testing.T) {
	procs := newFakeProcs()
	procs.password = "hunter2"
	procs.users["marie"] = model.User{ID: "u1", Username: "marie", IsAdmin: true, DarkMode: true}
	g := newGateway(t, procs)

	session, err := g.SignIn(context.Background(), "marie", "hunter2")
	require.NoError(t, err)
	require.Equal(t, model.Session{ID: "u1", Username: "marie", IsAdmin: true, DarkMode: true}, session)

	current, ok := g.Current()
	require.True(t, ok)
	require.Equal(t, session, current)
}

func TestSignIn_GenericErrorHidesAccountExistence(t *testing.T) {
	procs := newFakeProcs()
	procs.password = "hunter2"
	procs.users["marie"] = model.User{ID: "u1", Username: "marie"}
	g := newGateway(t, procs)

	_, wrongPassword := g.SignIn(context.Background(), "marie", "nope")
	_, unknownUser := g.SignIn(context.Background(), "nobody", "nope")

	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	require.Equal(t, wrongPassword.Error(), unknownUser.Error())
	require.True(t, apperr.IsCode(wrongPassword, apperr.CodeInvalidCredentials))
	require.True(t, apperr.IsCode(unknownUser, apperr.CodeInvalidCredentials))
}

func TestSignUp_DuplicateUsername(t *testing.T) {
	procs := newFakeProcs()
	procs.users["marie"] = model.User{ID: "u1", Username: "marie"}
	g := newGateway(t, procs)

	_, err := g.SignUp(context.Background(), "marie", "pw")
	require.True(t, apperr.IsCode(err, apperr.CodeUsernameExists))
}

func TestSignUp_DuplicateRaceTranslated(t *testing.T) {
	// The uniqueness check passes but the remote create loses the race.
	procs := newFakeProcs()
	procs.createErr = apperr.Wrap(apperr.CodeUsernameExists, "username already exists", errors.New("23505"))
	g := newGateway(t, procs)

	_, err := g.SignUp(context.Background(), "marie", "pw")
	require.True(t, apperr.IsCode(err, apperr.CodeUsernameExists))
}

func TestSignUp_ThenSignOutClearsCache(t *testing.T) {
	procs := newFakeProcs()
	cache, err := localcache.New(t.TempDir())
	require.NoError(t, err)
	g := NewGateway(procs, cache, slog.Default())

	_, err = g.SignUp(context.Background(), "marie", "pw")
	require.NoError(t, err)

	var cached model.Session
	require.True(t, cache.GetJSON(localcache.KeyUserSession, &cached))

	g.SignOut()
	_, signed := g.Current()
	require.False(t, signed)
	require.False(t, cache.GetJSON(localcache.KeyUserSession, &cached))
}

func TestNewGateway_RestoresCachedSession(t *testing.T) {
	cache, err := localcache.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cache.SetJSON(localcache.KeyUserSession, model.Session{ID: "u1", Username: "marie"}))

	g := NewGateway(newFakeProcs(), cache, slog.Default())
	session, ok := g.Current()
	require.True(t, ok)
	require.Equal(t, "marie", session.Username)
}

func TestToggleDarkMode_OptimisticOnRemoteFailure(t *testing.T) {
	procs := newFakeProcs()
	procs.password = "pw"
	procs.users["marie"] = model.User{ID: "u1", Username: "marie"}
	procs.setDarkModeErr = errors.New("write failed")

	cache, err := localcache.New(t.TempDir())
	require.NoError(t, err)
	g := NewGateway(procs, cache, slog.Default())

	_, err = g.SignIn(context.Background(), "marie", "pw")
	require.NoError(t, err)

	err = g.ToggleDarkMode(context.Background())
	require.True(t, apperr.IsCode(err, apperr.CodeStorage))

	// Local session and cache still reflect the toggle.
	session, _ := g.Current()
	require.True(t, session.DarkMode)

	var cached model.Session
	require.True(t, cache.GetJSON(localcache.KeyUserSession, &cached))
	require.True(t, cached.DarkMode)
}

func TestRecovery_FullFlow(t *testing.T) {
	procs := newFakeProcs()
	procs.users["marie"] = model.User{ID: "u1", Username: "marie", Email: "marie@example.com"}
	g := newGateway(t, procs)

	token, err := g.RequestRecovery(context.Background(), "marie")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, g.ResetPassword(context.Background(), token, "newpw"))

	// The token was consumed; a second reset must fail.
	err = g.ResetPassword(context.Background(), token, "again")
	require.True(t, apperr.IsCode(err, apperr.CodeInvalidToken))
}

func TestRequestRecovery_RequiresRegisteredEmail(t *testing.T) {
	procs := newFakeProcs()
	procs.users["marie"] = model.User{ID: "u1", Username: "marie"}
	g := newGateway(t, procs)

	_, err := g.RequestRecovery(context.Background(), "marie")
	require.True(t, apperr.IsCode(err, apperr.CodeValidation))

	_, err = g.RequestRecovery(context.Background(), "nobody")
	require.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestResetPassword_InvalidToken(t *testing.T) {
	g := newGateway(t, newFakeProcs())

	err := g.ResetPassword(context.Background(), "bogus", "pw")
	require.True(t, apperr.IsCode(err, apperr.CodeInvalidToken))
}
