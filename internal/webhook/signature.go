package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns hex HMAC-SHA256 over "<event>.<object id>".
func Sign(secret, event, objectID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(event + "." + objectID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares in constant time. An empty secret never verifies.
func VerifySignature(secret, event, objectID, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, event, objectID))
	return hmac.Equal(got, want)
}
