package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerify(t *testing.T) {
	body := []byte(`{"id":123,"reference":"CMD-1"}`)
	sig := Sign("s3cret", body)

	assert.True(t, Verify("s3cret", body, sig))
}

func TestVerifyTamperedBody(t *testing.T) {
	body := []byte(`{"id":123}`)
	sig := Sign("s3cret", body)

	assert.False(t, Verify("s3cret", []byte(`{"id":124}`), sig))
}

func TestVerifyWrongSecret(t *testing.T) {
	body := []byte(`{"id":123}`)
	sig := Sign("s3cret", body)

	assert.False(t, Verify("other", body, sig))
}

func TestVerifyMalformedSignature(t *testing.T) {
	body := []byte(`{"id":123}`)

	// Not hex, truncated hex, and empty must all fail cleanly.
	assert.False(t, Verify("s3cret", body, "not-hex!!"))
	assert.False(t, Verify("s3cret", body, "abcd"))
	assert.False(t, Verify("s3cret", body, ""))
}
