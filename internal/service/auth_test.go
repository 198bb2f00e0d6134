package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sileshop/backend/internal/domain"
	"github.com/sileshop/backend/internal/repository/memstore"
	"github.com/sileshop/backend/pkg/crypto"
	"github.com/sileshop/backend/pkg/discord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentity struct {
	user        *discord.User
	exchangeErr error
	fetchErr    error
	codes       []string
}

func (f *fakeIdentity) AuthCodeURL(state string) string {
	return "https://discord.test/authorize?state=" + state
}

func (f *fakeIdentity) Exchange(ctx context.Context, code string) (*discord.Token, error) {
	f.codes = append(f.codes, code)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &discord.Token{AccessToken: "at-" + code, TokenType: "Bearer", Scope: "identify email guilds"}, nil
}

func (f *fakeIdentity) FetchUser(ctx context.Context, accessToken string) (*discord.User, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.user, nil
}

func newAuth(t *testing.T, identity IdentityProvider, clock *testClock) (*AuthService, *memstore.Store) {
	t.Helper()
	sealer, err := crypto.NewSealer(crypto.DeriveKey("session-secret"))
	require.NoError(t, err)
	store := memstore.New()
	return NewAuthService("session-secret", 0, store.Users(), identity, sealer, clock.Now), store
}

func TestCompleteLoginUpsertsUserWithSealedToken(t *testing.T) {
	identity := &fakeIdentity{user: &discord.User{ID: "42", Username: "ferris", GlobalName: "Ferris", Avatar: "abc"}}
	clock := newTestClock(fixedNow)
	auth, store := newAuth(t, identity, clock)
	ctx := context.Background()

	user, session, err := auth.CompleteLogin(ctx, "code-1")
	require.NoError(t, err)
	assert.NotEmpty(t, session)
	assert.Equal(t, "42", user.DiscordID)
	assert.NotEqual(t, "at-code-1", user.AccessToken, "token is sealed at rest")

	stored, err := store.Users().FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, stored.TokenCreatedAt)

	token, err := auth.DiscordToken(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "at-code-1", token)

	claims, err := auth.VerifySession(session)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "42", claims.DiscordID)

	// Logging in again keeps the same internal id.
	again, _, err := auth.CompleteLogin(ctx, "code-2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	token, err = auth.DiscordToken(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "at-code-2", token)

	me, err := auth.CurrentUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "42", me.ID)
	assert.Equal(t, "https://cdn.discordapp.com/avatars/42/abc.png?size=128", me.AvatarURL)
}

func TestCompleteLoginDiscordFailures(t *testing.T) {
	clock := newTestClock(fixedNow)

	auth, _ := newAuth(t, &fakeIdentity{exchangeErr: errors.New("bad code")}, clock)
	_, _, err := auth.CompleteLogin(context.Background(), "code")
	assertCode(t, err, http.StatusBadGateway, domain.CodeDiscordUnavailable)

	auth, _ = newAuth(t, &fakeIdentity{fetchErr: errors.New("503")}, clock)
	_, _, err = auth.CompleteLogin(context.Background(), "code")
	assertCode(t, err, http.StatusBadGateway, domain.CodeDiscordUnavailable)

	_, _, err = auth.CompleteLogin(context.Background(), "")
	assertCode(t, err, http.StatusBadRequest, domain.CodeInvalidRequest)
}

func TestVerifySessionRejectsExpiredAndForeignTokens(t *testing.T) {
	clock := newTestClock(fixedNow)
	auth, _ := newAuth(t, &fakeIdentity{}, clock)

	session, err := auth.IssueSession(&domain.User{ID: "u1", DiscordID: "42"})
	require.NoError(t, err)

	clock.Advance(DefaultSessionTTL + time.Minute)
	_, err = auth.VerifySession(session)
	assertCode(t, err, http.StatusUnauthorized, domain.CodeAuthRequired)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "exp": fixedNow.Add(time.Hour).Unix()})
	signed, err := foreign.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = auth.VerifySession(signed)
	assertCode(t, err, http.StatusUnauthorized, domain.CodeAuthRequired)

	_, err = auth.VerifySession("garbage")
	assert.Error(t, err)
}

func TestDiscordTokenMissing(t *testing.T) {
	auth, store := newAuth(t, &fakeIdentity{}, newTestClock(fixedNow))
	_, err := store.Users().Upsert(context.Background(), &domain.User{ID: "u1", DiscordID: "42"})
	require.NoError(t, err)

	_, err = auth.DiscordToken(context.Background(), "u1")
	assertCode(t, err, http.StatusUnauthorized, domain.CodeNoToken)

	_, err = auth.DiscordToken(context.Background(), "missing")
	assertCode(t, err, http.StatusUnauthorized, domain.CodeNoToken)

	me, err := auth.CurrentUser(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, me)
}

func TestNewStateIsRandom(t *testing.T) {
	auth, _ := newAuth(t, &fakeIdentity{}, newTestClock(fixedNow))
	a, b := auth.NewState(), auth.NewState()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.Equal(t, "https://discord.test/authorize?state="+a, auth.LoginURL(a))
}
