// Package ingest implements the webhook entry point: signature
// verification, payload validation, and the dedup/rate-limit gate
// (spec.md §4.A, §4.B, §4.D).
package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifySignature checks the X-Hub-Signature-256 header against an
// HMAC-SHA256 digest of body computed with secret, in constant time.
func VerifySignature(body []byte, header, secret string) bool {
	if header == "" || !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	got := strings.TrimPrefix(header, signaturePrefix)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(got), []byte(want))
}
