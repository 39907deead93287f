// Package dispatch defines the wire envelope carried on the dispatch channel.
// The envelope wraps the JSON dispatch payload with an HMAC-SHA256 signature
// over a shared secret, the trust credential the worker tier verifies before
// doing any work.
package dispatch

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidSignature is returned when an envelope's signature is absent or
// does not match the payload.
var ErrInvalidSignature = errors.New("invalid envelope signature")

// Envelope is the on-wire frame. Payload is base64 in JSON form; Sig is the
// hex HMAC-SHA256 of the raw payload bytes.
type Envelope struct {
	Payload []byte `json:"payload"`
	Sig     string `json:"sig"`
}

// Seal wraps payload in a signed envelope.
func Seal(payload, secret []byte) ([]byte, error) {
	env := Envelope{
		Payload: payload,
		Sig:     sign(payload, secret),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return raw, nil
}

// Open parses a raw envelope and verifies its signature, returning the inner
// payload. A syntactically valid envelope with a bad signature returns
// ErrInvalidSignature; callers treat that as an authentication failure, not a
// malformed message.
func Open(raw, secret []byte) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if !hmac.Equal([]byte(env.Sig), []byte(sign(env.Payload, secret))) {
		return nil, ErrInvalidSignature
	}
	return env.Payload, nil
}

func sign(payload, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
