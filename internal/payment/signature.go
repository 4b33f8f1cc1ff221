package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayload returns the hex HMAC-SHA256 of "timestamp.payload" keyed by secret.
func SignPayload(secret, payload, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares signature against the expected one in constant
// time. A signature of the wrong length is simply rejected.
func VerifySignature(secret, payload, signature, timestamp string) bool {
	expected := SignPayload(secret, payload, timestamp)
	return hmac.Equal([]byte(expected), []byte(signature))
}
