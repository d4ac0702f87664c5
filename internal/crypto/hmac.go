package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

// HMACAuth holds the credentials required for HMAC-authenticated requests
// against the target-book exchange API.
type HMACAuth struct {
	Key    string // API key
	Secret string // API secret, base64-encoded
}

// Headers returns the HTTP headers for an authenticated exchange request.
// The signature is HMAC-SHA256(secret, timestamp+method+path+body) encoded as
// base64; the secret is base64-decoded before use.
//
// Returned header keys:
//   - DLM-API-KEY
//   - DLM-TIMESTAMP
//   - DLM-SIGNATURE
func (h *HMACAuth) Headers(method, path, body string) map[string]string {
	ts := currentTimestamp()

	secretBytes, err := base64.StdEncoding.DecodeString(h.Secret)
	if err != nil {
		// Not base64, sign with the raw bytes.
		secretBytes = []byte(h.Secret)
	}

	message := ts + method + path + body
	sig := hmacSHA256Base64(secretBytes, message)

	return map[string]string{
		"DLM-API-KEY":   h.Key,
		"DLM-TIMESTAMP": ts,
		"DLM-SIGNATURE": sig,
	}
}

// hmacSHA256Base64 computes HMAC-SHA256 of message with key and returns it
// base64 encoded.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// currentTimestamp returns the current Unix time in seconds as a string.
func currentTimestamp() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}
