package bootstrap

import (
	"log/slog"

	"github.com/glhm/console/internal/cryptoutil"
)

// CreateSealer creates an AES-GCM sealer for values at rest.
// Returns a plain sealer if the key is empty or invalid (with warning log).
//
//nolint:ireturn // Returning interface is intentional for sealer abstraction
func CreateSealer(key string, logger *slog.Logger) cryptoutil.Sealer {
	if key == "" {
		if logger != nil {
			logger.Warn("storage encryption key is empty, credential stored in plaintext")
		}
		return cryptoutil.PlainSealer{}
	}

	keyBytes, err := cryptoutil.KeyFromString(key)
	if err == nil {
		var sealer *cryptoutil.AESGCMSealer
		if sealer, err = cryptoutil.NewAESGCMSealer(keyBytes); err == nil {
			return sealer
		}
	}
	if logger != nil {
		logger.Warn("failed to create sealer, credential stored in plaintext", "error", err)
	}
	return cryptoutil.PlainSealer{}
}
