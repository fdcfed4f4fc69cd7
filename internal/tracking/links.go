// Package tracking is the HTTP beacon surface: signed open/click/unsubscribe
// links, the HTML rewriter that plants them into outgoing mail, and the
// handlers that serve the pixel and redirects.
package tracking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// LinkBuilder mints and verifies signed tracking URLs. The payload is
// "campaignID|contactID|url" base64-encoded, with an HMAC-SHA256 signature
// so beacon parameters cannot be forged or tampered with in transit.
type LinkBuilder struct {
	baseURL string
	key     []byte
}

// NewLinkBuilder creates a builder. baseURL is the public tracking host,
// without a trailing slash.
func NewLinkBuilder(baseURL, signingKey string) *LinkBuilder {
	return &LinkBuilder{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		key:     []byte(signingKey),
	}
}

// OpenPixelURL returns the signed 1x1 pixel URL for one recipient.
func (b *LinkBuilder) OpenPixelURL(campaignID, contactID string) string {
	data := campaignID + "|" + contactID
	return fmt.Sprintf("%s/track/open/%s/%s", b.baseURL, encode(data), b.sign(data))
}

// ClickURL returns the signed redirect URL wrapping originalURL.
func (b *LinkBuilder) ClickURL(campaignID, contactID, originalURL string) string {
	data := campaignID + "|" + contactID + "|" + originalURL
	return fmt.Sprintf("%s/track/click/%s/%s", b.baseURL, encode(data), b.sign(data))
}

// UnsubscribeURL returns the signed one-click unsubscribe URL.
func (b *LinkBuilder) UnsubscribeURL(campaignID, contactID string) string {
	data := campaignID + "|" + contactID
	return fmt.Sprintf("%s/track/unsubscribe/%s/%s", b.baseURL, encode(data), b.sign(data))
}

// Decode verifies a signed payload and splits it back into campaign id,
// contact id, and (for click links) the destination URL. ok is false for a
// bad signature or malformed payload; callers still serve their response.
func (b *LinkBuilder) Decode(encoded, signature string) (campaignID, contactID, url string, ok bool) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", "", false
	}
	data := string(raw)
	if !hmac.Equal([]byte(b.sign(data)), []byte(signature)) {
		return "", "", "", false
	}
	parts := strings.SplitN(data, "|", 3)
	if len(parts) < 2 {
		return "", "", "", false
	}
	campaignID, contactID = parts[0], parts[1]
	if len(parts) == 3 {
		url = parts[2]
	}
	return campaignID, contactID, url, true
}

func (b *LinkBuilder) sign(data string) string {
	h := hmac.New(sha256.New, b.key)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func encode(data string) string {
	return base64.URLEncoding.EncodeToString([]byte(data))
}
