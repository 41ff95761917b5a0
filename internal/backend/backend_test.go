package backend

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glhm/console/internal/adapters/cookiejar"
	"github.com/glhm/console/internal/adapters/tokenstore"
	"github.com/glhm/console/internal/apiclient"
	"github.com/glhm/console/internal/credential"
	domainauth "github.com/glhm/console/internal/domain/auth"
	apperrors "github.com/glhm/console/internal/errors"
	"github.com/glhm/console/internal/rsacrypto"
	"github.com/glhm/console/internal/testutil"
)

type stack struct {
	fb     *testutil.FakeBackend
	store  *credential.Store
	auth   *Auth
	images *Images
	crypto *rsacrypto.Gateway
}

func newStack(t *testing.T) *stack {
	t.Helper()
	fb := testutil.NewFakeBackend(t)
	ch, err := cookiejar.NewChannel(cookiejar.Options{BaseURL: fb.BaseURL(), Name: credential.DefaultKey})
	require.NoError(t, err)
	store, err := credential.NewStore(credential.StoreOptions{Storage: tokenstore.NewMemoryStorage(), Cookie: ch})
	require.NoError(t, err)
	client, err := apiclient.New(apiclient.Options{BaseURL: fb.BaseURL(), Credentials: store, Jar: ch.Jar()})
	require.NoError(t, err)

	auth, err := NewAuth(client)
	require.NoError(t, err)
	images, err := NewImages(client)
	require.NoError(t, err)
	gw, err := rsacrypto.NewGateway(rsacrypto.GatewayOptions{Keys: auth})
	require.NoError(t, err)
	return &stack{fb: fb, store: store, auth: auth, images: images, crypto: gw}
}

func (s *stack) login(t *testing.T, username, password string) string {
	t.Helper()
	ctx := context.Background()
	enc, err := s.crypto.Encrypt(ctx, password)
	require.NoError(t, err)
	token, err := s.auth.Login(ctx, username, enc, true)
	require.NoError(t, err)
	require.NoError(t, s.store.Set(ctx, token))
	return token
}

func TestAuth_LoginWithEncryptedPassword(t *testing.T) {
	s := newStack(t)
	s.fb.AddUser("alice", "pw", domainauth.UserProfile{OrganizationID: "org-1", Permission: domainauth.PermissionAdmin})

	token := s.login(t, "alice", "pw")
	assert.True(t, s.fb.TokenValid(token))

	ok, err := s.auth.IsLogin(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	profile, err := s.auth.CurrentUser(context.Background())
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "alice", profile.Username)
	assert.True(t, profile.IsAdmin())
	assert.True(t, profile.HasOrganization())
}

func TestAuth_LoginRejectsPlaintext(t *testing.T) {
	s := newStack(t)
	s.fb.AddUser("alice", "pw", domainauth.UserProfile{})

	_, err := s.auth.Login(context.Background(), "alice", "pw", false)
	require.Error(t, err)
	assert.True(t, apperrors.IsEnvelope(err))
}

func TestAuth_LoginWrongPassword(t *testing.T) {
	s := newStack(t)
	s.fb.AddUser("alice", "pw", domainauth.UserProfile{})
	enc, err := s.crypto.Encrypt(context.Background(), "nope")
	require.NoError(t, err)

	_, err = s.auth.Login(context.Background(), "alice", enc, false)
	require.Error(t, err)
	assert.Equal(t, "invalid username or password", apperrors.UserMessage(err, ""))
}

func TestAuth_RegisterOmitsEmptyEmail(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	enc, err := s.crypto.Encrypt(ctx, "pw")
	require.NoError(t, err)

	token, err := s.auth.Register(ctx, "bob", enc, "")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = s.auth.Register(ctx, "bob", enc, "bob@example.com")
	require.Error(t, err)
	assert.Equal(t, "user already exists", apperrors.UserMessage(err, ""))
}

func TestAuth_CanRegister(t *testing.T) {
	s := newStack(t)

	open, err := s.auth.CanRegister(context.Background())
	require.NoError(t, err)
	assert.True(t, open)

	s.fb.Update(func(b *testutil.Behavior) { b.CanRegister = false })
	open, err = s.auth.CanRegister(context.Background())
	require.NoError(t, err)
	assert.False(t, open)
}

func TestAuth_CurrentUserWithoutCredentialIsRejected(t *testing.T) {
	s := newStack(t)

	_, err := s.auth.CurrentUser(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthRejected(err))
}

func TestAuth_Logout(t *testing.T) {
	s := newStack(t)
	s.fb.AddUser("alice", "pw", domainauth.UserProfile{})
	token := s.login(t, "alice", "pw")

	require.NoError(t, s.auth.Logout(context.Background()))
	assert.False(t, s.fb.TokenValid(token))
}

func TestAuth_PublicKeyFailureIsKeyFetch(t *testing.T) {
	s := newStack(t)
	s.fb.Update(func(b *testutil.Behavior) { b.PublicKeyStatus = 503 })

	_, err := s.crypto.Encrypt(context.Background(), "pw")
	require.Error(t, err)
	assert.True(t, apperrors.IsKeyFetch(err))
	assert.Zero(t, s.fb.Count(PathLogin))
}

func TestImages_UploadGetDelete(t *testing.T) {
	s := newStack(t)
	s.fb.AddUser("alice", "pw", domainauth.UserProfile{})
	s.login(t, "alice", "pw")
	ctx := context.Background()

	id, err := s.images.Upload(ctx, apiclient.File{Name: "a.txt", Body: strings.NewReader("hello")})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	blob, err := s.images.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(blob.Data))

	native, err := s.images.GetNative(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(native.Data))

	_, err = s.images.Update(ctx, id, apiclient.File{Name: "a.txt", Body: strings.NewReader("bye")})
	require.NoError(t, err)
	data, ok := s.fb.Image(id)
	require.True(t, ok)
	assert.Equal(t, "bye", string(data))

	require.NoError(t, s.images.Delete(ctx, id))
	_, ok = s.fb.Image(id)
	assert.False(t, ok)
}

func TestImages_NativeGetUsesCookieOnly(t *testing.T) {
	s := newStack(t)
	s.fb.AddUser("alice", "pw", domainauth.UserProfile{})
	token := s.login(t, "alice", "pw")
	s.fb.PutImage("img", []byte("x"))

	_, err := s.images.GetNative(context.Background(), "img")
	require.NoError(t, err)

	reqs := s.fb.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, PathImageGet, last.Path)
	assert.Empty(t, last.Header)
	assert.Equal(t, token, last.Cookie)
}

func TestImages_InvalidIDs(t *testing.T) {
	s := newStack(t)
	for _, id := range []string{"", "null", "undefined", "  "} {
		assert.False(t, ValidImageID(id), id)
		assert.Empty(t, s.images.URL(id))
		_, err := s.images.Get(context.Background(), id)
		assert.True(t, apperrors.IsValidation(err))
	}
	assert.Equal(t, s.fb.BaseURL()+"/image/get?id=abc", s.images.URL("abc"))
}
