package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

func hmacSum(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// SignHMAC returns lowercase hex of HMAC-SHA256 over body for use in the
// X-Signature header.
func SignHMAC(secret string, body []byte) string {
	return hex.EncodeToString(hmacSum(secret, body))
}

// VerifyHMAC checks a hex HMAC-SHA256 signature over the raw body.
func VerifyHMAC(secret string, body []byte, provided string) bool {
	b, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}
	return hmac.Equal(hmacSum(secret, body), b)
}
