package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestSealOpen_RoundTrip(t *testing.T) {
	payload := []byte(`{"job_id": "abc"}`)

	raw, err := Seal(payload, testSecret)
	require.NoError(t, err)

	got, err := Open(raw, testSecret)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestOpen_WrongSecret(t *testing.T) {
	raw, err := Seal([]byte("payload"), testSecret)
	require.NoError(t, err)

	_, err = Open(raw, []byte("other-secret"))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestOpen_TamperedPayload(t *testing.T) {
	raw, err := Seal([]byte(`{"user_id": "alice"}`), testSecret)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	env.Payload = []byte(`{"user_id": "mallory"}`)
	tampered, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = Open(tampered, testSecret)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestOpen_MissingSignature(t *testing.T) {
	raw, err := json.Marshal(Envelope{Payload: []byte("payload")})
	require.NoError(t, err)

	_, err = Open(raw, testSecret)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestOpen_MalformedFrame(t *testing.T) {
	_, err := Open([]byte("not json"), testSecret)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidSignature)
}
