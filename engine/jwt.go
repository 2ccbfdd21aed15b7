// Package engine implements the Engine API client the driver uses to feed
// derived PayloadAttributes into an L2 execution client, and the
// forkchoice/reorg bookkeeping layered on top of it (magi
// src/driver/engine_driver.rs EngineDriver).
package engine

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// LoadJWTSecret reads a 32-byte hex-encoded shared secret from path, the
// same jwt.hex format geth/op-geth's --authrpc.jwtsecret flag expects.
func LoadJWTSecret(path string) ([32]byte, error) {
	var secret [32]byte
	raw, err := os.ReadFile(path)
	if err != nil {
		return secret, fmt.Errorf("reading jwt secret %s: %w", path, err)
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(strings.TrimPrefix(string(raw), "0x")))
	if err != nil {
		return secret, fmt.Errorf("jwt secret %s is not valid hex: %w", path, err)
	}
	if len(decoded) != 32 {
		return secret, fmt.Errorf("jwt secret %s must be 32 bytes, got %d", path, len(decoded))
	}
	copy(secret[:], decoded)
	return secret, nil
}

// newAuthToken mints a fresh HS256 JWT carrying only an iat claim, as the
// Engine API auth spec requires: the server rejects tokens whose iat is
// more than 60 seconds away from its own clock, so a client must sign a
// new one per request rather than reusing a long-lived token.
func newAuthToken(secret [32]byte) (string, error) {
	claims := jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret[:])
}
