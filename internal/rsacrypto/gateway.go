// Package rsacrypto encrypts secrets with the backend's RSA public key before
// they leave the process. Ciphertexts are PKCS#1 v1.5, base64 encoded, which is
// what the backend's login and register endpoints decrypt.
package rsacrypto

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/glhm/console/internal/errors"
	"github.com/glhm/console/internal/ports"
)

// Gateway fetches the public key and encrypts with it.
type Gateway struct {
	keys   ports.PublicKeySource
	cache  ports.KeyCache
	ttl    time.Duration
	random io.Reader
	logger *slog.Logger
}

var _ ports.Encryptor = (*Gateway)(nil)

// GatewayOptions groups dependencies for Gateway.
type GatewayOptions struct {
	Keys ports.PublicKeySource
	// Cache is optional. It is only consulted when CacheTTL is positive.
	Cache    ports.KeyCache
	CacheTTL time.Duration
	// Random overrides crypto/rand, for tests.
	Random io.Reader
	Logger *slog.Logger
}

// NewGateway constructs a Gateway.
func NewGateway(opts GatewayOptions) (*Gateway, error) {
	if opts.Keys == nil {
		return nil, errors.New("rsa gateway requires a public key source")
	}
	random := opts.Random
	if random == nil {
		random = rand.Reader
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		keys:   opts.Keys,
		random: random,
		logger: logger.With("component", "rsa_gateway"),
	}
	if opts.Cache != nil && opts.CacheTTL > 0 {
		g.cache = opts.Cache
		g.ttl = opts.CacheTTL
	}
	return g, nil
}

// Encrypt returns base64(RSA-PKCS1v15(publicKey, plaintext)).
// Key retrieval failures are KeyFetch errors; everything after that is an Encryption error.
func (g *Gateway) Encrypt(ctx context.Context, plaintext string) (string, error) {
	pemText, cached, err := g.publicKey(ctx)
	if err != nil {
		return "", err
	}

	pub, err := ParsePublicKey(pemText)
	if err != nil {
		if cached {
			g.invalidate(ctx)
		}
		return "", apperrors.Encryption(err)
	}

	out, err := rsa.EncryptPKCS1v15(g.random, pub, []byte(plaintext))
	if err != nil {
		return "", apperrors.Encryption(err)
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

func (g *Gateway) publicKey(ctx context.Context) (string, bool, error) {
	if g.cache != nil {
		key, ok, err := g.cache.Get(ctx)
		switch {
		case err != nil:
			g.logger.WarnContext(ctx, "public key cache read failed", "error", err)
		case ok && key != "":
			return key, true, nil
		}
	}

	key, err := g.keys.PublicKey(ctx)
	if err != nil {
		g.invalidate(ctx)
		return "", false, apperrors.KeyFetch(err)
	}
	if strings.TrimSpace(key) == "" {
		g.invalidate(ctx)
		return "", false, apperrors.KeyFetch(errors.New("backend returned an empty public key"))
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, key, g.ttl); err != nil {
			g.logger.WarnContext(ctx, "public key cache write failed", "error", err)
		}
	}
	return key, false, nil
}

func (g *Gateway) invalidate(ctx context.Context) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Invalidate(ctx); err != nil {
		g.logger.WarnContext(ctx, "public key cache invalidate failed", "error", err)
	}
}

// ParsePublicKey accepts a PEM block (PUBLIC KEY or RSA PUBLIC KEY) or bare
// base64 DER, trying PKIX before PKCS#1.
func ParsePublicKey(text string) (*rsa.PublicKey, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("public key is empty")
	}

	var der []byte
	if block, _ := pem.Decode([]byte(text)); block != nil {
		der = block.Bytes
	} else {
		compact := strings.Join(strings.Fields(text), "")
		b, err := base64.StdEncoding.DecodeString(compact)
		if err != nil {
			return nil, fmt.Errorf("decode public key: %w", err)
		}
		der = b
	}

	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is %T, not RSA", key)
		}
		return pub, nil
	}
	pub, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return pub, nil
}
