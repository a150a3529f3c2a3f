package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// WebhookSignatureVerifier implements ports.SignatureVerifier for the
// provider's x-signature scheme: "ts=<unix-ts>,v1=<hex hmac-sha256>".
type WebhookSignatureVerifier struct{}

// NewWebhookSignatureVerifier creates a new HMAC-SHA256 webhook verifier.
func NewWebhookSignatureVerifier() *WebhookSignatureVerifier {
	return &WebhookSignatureVerifier{}
}

// ParseSignatureHeader extracts the ts and v1 parts of an x-signature header.
// ok is false unless both parts are present and non-empty.
func ParseSignatureHeader(header string) (ts, v1 string, ok bool) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	return ts, v1, ts != "" && v1 != ""
}

// BuildManifest constructs the signed string:
// id:<lowercased payment id>;[request-id:<id>;]ts:<ts>;
func BuildManifest(paymentID, requestID, ts string) string {
	var b strings.Builder
	b.WriteString("id:")
	b.WriteString(strings.ToLower(paymentID))
	b.WriteString(";")
	if requestID != "" {
		b.WriteString("request-id:")
		b.WriteString(requestID)
		b.WriteString(";")
	}
	b.WriteString("ts:")
	b.WriteString(ts)
	b.WriteString(";")
	return b.String()
}

// Sign computes HMAC-SHA256 of manifest using secret.
// Returns lowercase hex-encoded signature.
func (s *WebhookSignatureVerifier) Sign(secret, manifest string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook reports whether signatureHeader authenticates the delivery.
// It fails closed: a malformed header, empty secret or empty payment id is a rejection.
func (s *WebhookSignatureVerifier) VerifyWebhook(signatureHeader, secret, paymentID, requestID string) bool {
	if secret == "" || paymentID == "" {
		return false
	}
	ts, v1, ok := ParseSignatureHeader(signatureHeader)
	if !ok {
		return false
	}
	got, err := hex.DecodeString(v1)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(BuildManifest(paymentID, requestID, ts)))
	return hmac.Equal(mac.Sum(nil), got)
}
