package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Webhook signature headers set by the provider on event callbacks.
const (
	headerWebhookSignature = "X-Email-Event-Webhook-Signature"
	headerWebhookTimestamp = "X-Email-Event-Webhook-Timestamp"
)

// verifySignature checks the webhook HMAC: base64(HMAC-SHA256(key, timestamp
// concatenated with the raw body)). Comparison is constant time.
func verifySignature(signingKey, timestamp string, body []byte, signature string) bool {
	if signingKey == "" || timestamp == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
