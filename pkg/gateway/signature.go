package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the callback body.
const SignatureHeader = "X-Payment-Signature"

// VerifyWebhookSignature checks a callback signature against the raw
// received bytes. The raw body must be hashed exactly as delivered; a body
// re-serialized from a parsed object breaks valid signatures on field
// ordering alone. Comparison is constant time.
func VerifyWebhookSignature(rawBody []byte, signatureHeader, secret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" || secret == "" {
		return false
	}

	decoded, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), decoded)
}

// SignWebhookBody produces the signature the network attaches to callbacks.
// Used by tests and the local development callback simulator.
func SignWebhookBody(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
