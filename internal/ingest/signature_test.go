package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_Valid(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	secret := "topsecret"
	assert.True(t, VerifySignature(body, sign(body, secret), secret))
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	secret := "topsecret"
	header := sign([]byte(`{"action":"opened"}`), secret)
	assert.False(t, VerifySignature([]byte(`{"action":"closed"}`), header, secret))
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	header := sign(body, "topsecret")
	assert.False(t, VerifySignature(body, header, "wrongsecret"))
}

func TestVerifySignature_MissingPrefix(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	secret := "topsecret"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	raw := hex.EncodeToString(mac.Sum(nil))
	assert.False(t, VerifySignature(body, raw, secret))
}

func TestVerifySignature_EmptyHeader(t *testing.T) {
	assert.False(t, VerifySignature([]byte("x"), "", "secret"))
}
