package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Verifier checks the authenticity of Shopify-originated requests against
// the shared app secret. Both checks return a plain boolean; callers must
// reject without side effects on false.
type Verifier struct {
	secret []byte
}

func NewVerifier(apiSecret string) *Verifier {
	return &Verifier{secret: []byte(apiSecret)}
}

// VerifyInstallCallback recomputes the hex HMAC-SHA256 over all query
// parameters except hmac itself, sorted by key and joined as key=value&...,
// and compares in constant time.
func (v *Verifier) VerifyInstallCallback(params url.Values) bool {
	provided := params.Get("hmac")
	if provided == "" {
		return false
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "hmac" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params.Get(k))
	}
	message := strings.Join(parts, "&")

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(message))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(provided))
}

// VerifyWebhook recomputes the base64 HMAC-SHA256 over the raw, unparsed
// request body. The body must reach here byte-for-byte as received;
// re-serializing a parsed payload would not reproduce the original bytes.
func (v *Verifier) VerifyWebhook(rawBody []byte, signatureHeader string) bool {
	if signatureHeader == "" {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}
