package venue

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// decodeSecret accepts URL-safe or standard base64, padded or not
func decodeSecret(secret string) ([]byte, error) {
	s := strings.TrimSpace(secret)
	for _, enc := range []*base64.Encoding{
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawURLEncoding,
		base64.RawStdEncoding,
	} {
		if key, err := enc.DecodeString(s); err == nil {
			return key, nil
		}
	}
	return nil, fmt.Errorf("secret is not valid base64")
}

// Sign computes the L2 request signature: HMAC-SHA256 over
// timestamp + METHOD + path + body, keyed by the decoded secret and
// returned as URL-safe base64.
func Sign(secret string, timestamp int64, method, path, body string) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}

	message := fmt.Sprintf("%d%s%s%s", timestamp, strings.ToUpper(method), path, body)

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}
