package tracking

import (
	"fmt"
	"regexp"
	"strings"
)

var hrefPattern = regexp.MustCompile(`href="(https?://[^"]+)"`)

// InjectTracking rewrites an outgoing HTML body for one recipient: every
// absolute link is wrapped in a signed click redirect, the open pixel is
// planted before </body>, and an unsubscribe footer link is appended when
// the body does not already carry one.
func (b *LinkBuilder) InjectTracking(html, campaignID, contactID string) string {
	html = hrefPattern.ReplaceAllStringFunc(html, func(match string) string {
		original := hrefPattern.FindStringSubmatch(match)[1]
		// Leave already-tracked and unsubscribe links alone.
		if strings.Contains(original, "/track/") || strings.Contains(original, "/unsubscribe") {
			return match
		}
		return fmt.Sprintf(`href="%s"`, b.ClickURL(campaignID, contactID, original))
	})

	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none" alt="" />`,
		b.OpenPixelURL(campaignID, contactID))
	if strings.Contains(html, "</body>") {
		html = strings.Replace(html, "</body>", pixel+"</body>", 1)
	} else {
		html += pixel
	}

	if !strings.Contains(html, "/track/unsubscribe/") {
		footer := fmt.Sprintf(
			`<p style="font-size:12px;color:#888"><a href="%s">Unsubscribe</a></p>`,
			b.UnsubscribeURL(campaignID, contactID))
		if strings.Contains(html, "</body>") {
			html = strings.Replace(html, "</body>", footer+"</body>", 1)
		} else {
			html += footer
		}
	}

	return html
}
