package rsacrypto

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glhm/console/internal/adapters/keycache"
	apperrors "github.com/glhm/console/internal/errors"
)

type keySource struct {
	keys  []string
	err   error
	calls int
}

func (k *keySource) PublicKey(context.Context) (string, error) {
	k.calls++
	if k.err != nil {
		return "", k.err
	}
	if len(k.keys) == 0 {
		return "", nil
	}
	key := k.keys[0]
	if len(k.keys) > 1 {
		k.keys = k.keys[1:]
	}
	return key, nil
}

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	return priv
}

func pkixPEM(t *testing.T, pub *rsa.PublicKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func decrypt(t *testing.T, priv *rsa.PrivateKey, ciphertext string) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	out, err := rsa.DecryptPKCS1v15(nil, priv, raw)
	require.NoError(t, err)
	return string(out)
}

func TestParsePublicKey_Formats(t *testing.T) {
	priv := generateKey(t)
	pkix, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pkcs1 := x509.MarshalPKCS1PublicKey(&priv.PublicKey)

	tests := []struct {
		name string
		text string
	}{
		{name: "pkix pem", text: pkixPEM(t, &priv.PublicKey)},
		{name: "pkcs1 pem", text: string(pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: pkcs1}))},
		{name: "bare base64 pkix", text: base64.StdEncoding.EncodeToString(pkix)},
		{name: "bare base64 pkcs1", text: base64.StdEncoding.EncodeToString(pkcs1)},
		{name: "wrapped base64", text: wrap(base64.StdEncoding.EncodeToString(pkix), 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, err := ParsePublicKey(tt.text)
			require.NoError(t, err)
			assert.True(t, pub.Equal(&priv.PublicKey))
		})
	}
}

func wrap(s string, n int) string {
	var b strings.Builder
	for len(s) > n {
		b.WriteString(s[:n])
		b.WriteByte('\n')
		s = s[n:]
	}
	b.WriteString(s)
	return b.String()
}

func TestParsePublicKey_Malformed(t *testing.T) {
	for _, text := range []string{"", "not base64!!", base64.StdEncoding.EncodeToString([]byte("garbage"))} {
		_, err := ParsePublicKey(text)
		assert.Error(t, err, text)
	}
}

func TestEncrypt_RoundTrip(t *testing.T) {
	priv := generateKey(t)
	src := &keySource{keys: []string{pkixPEM(t, &priv.PublicKey)}}
	g, err := NewGateway(GatewayOptions{Keys: src})
	require.NoError(t, err)

	out, err := g.Encrypt(context.Background(), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", decrypt(t, priv, out))

	_, err = g.Encrypt(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "key is fetched per call without a cache")
}

func TestEncrypt_KeyFetchFailures(t *testing.T) {
	tests := []struct {
		name string
		src  *keySource
	}{
		{name: "source error", src: &keySource{err: apperrors.Transport("GET auth/publicKey", errors.New("refused"))}},
		{name: "empty key", src: &keySource{keys: []string{"  "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGateway(GatewayOptions{Keys: tt.src})
			require.NoError(t, err)

			_, err = g.Encrypt(context.Background(), "pw")
			require.Error(t, err)
			assert.True(t, apperrors.IsKeyFetch(err))
		})
	}
}

func TestEncrypt_MalformedKeyIsEncryptionError(t *testing.T) {
	g, err := NewGateway(GatewayOptions{Keys: &keySource{keys: []string{"bogus"}}})
	require.NoError(t, err)

	_, err = g.Encrypt(context.Background(), "pw")
	require.Error(t, err)
	assert.True(t, apperrors.IsEncryption(err))
}

func TestEncrypt_PlaintextTooLong(t *testing.T) {
	priv := generateKey(t)
	g, err := NewGateway(GatewayOptions{Keys: &keySource{keys: []string{pkixPEM(t, &priv.PublicKey)}}})
	require.NoError(t, err)

	_, err = g.Encrypt(context.Background(), strings.Repeat("x", 200))
	require.Error(t, err)
	assert.True(t, apperrors.IsEncryption(err))
}

func TestEncrypt_CacheReusesKey(t *testing.T) {
	priv := generateKey(t)
	src := &keySource{keys: []string{pkixPEM(t, &priv.PublicKey)}}
	g, err := NewGateway(GatewayOptions{Keys: src, Cache: keycache.NewMemory(), CacheTTL: time.Minute})
	require.NoError(t, err)

	for range 3 {
		out, err := g.Encrypt(context.Background(), "pw")
		require.NoError(t, err)
		assert.Equal(t, "pw", decrypt(t, priv, out))
	}
	assert.Equal(t, 1, src.calls)
}

func TestEncrypt_CacheDisabledWithoutTTL(t *testing.T) {
	priv := generateKey(t)
	src := &keySource{keys: []string{pkixPEM(t, &priv.PublicKey)}}
	g, err := NewGateway(GatewayOptions{Keys: src, Cache: keycache.NewMemory()})
	require.NoError(t, err)

	for range 2 {
		_, err := g.Encrypt(context.Background(), "pw")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, src.calls)
}

func TestEncrypt_BadCachedKeyIsInvalidated(t *testing.T) {
	priv := generateKey(t)
	cache := keycache.NewMemory()
	require.NoError(t, cache.Set(context.Background(), "stale", time.Minute))
	src := &keySource{keys: []string{pkixPEM(t, &priv.PublicKey)}}
	g, err := NewGateway(GatewayOptions{Keys: src, Cache: cache, CacheTTL: time.Minute})
	require.NoError(t, err)

	_, err = g.Encrypt(context.Background(), "pw")
	require.Error(t, err)
	assert.True(t, apperrors.IsEncryption(err))
	assert.Zero(t, src.calls)

	out, err := g.Encrypt(context.Background(), "pw")
	require.NoError(t, err)
	assert.Equal(t, "pw", decrypt(t, priv, out))
	assert.Equal(t, 1, src.calls)
}

func TestEncrypt_FetchFailureInvalidatesCache(t *testing.T) {
	cache := keycache.NewMemory()
	src := &keySource{err: errors.New("down")}
	g, err := NewGateway(GatewayOptions{Keys: src, Cache: cache, CacheTTL: time.Minute})
	require.NoError(t, err)

	_, err = g.Encrypt(context.Background(), "pw")
	require.Error(t, err)
	_, ok, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewGateway_RequiresSource(t *testing.T) {
	_, err := NewGateway(GatewayOptions{})
	assert.Error(t, err)
}
