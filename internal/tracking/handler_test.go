package tracking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ignite/pulsemail/internal/domain"
	engagement "github.com/ignite/pulsemail/internal/service/tracking"
)

// nullStore satisfies the engagement store without persistence; beacon
// handlers must behave the same whether or not tracking lands.
type nullStore struct{ opens, clicks int }

func (s *nullStore) MarkOpened(context.Context, string, string) (*engagement.OpenResult, error) {
	s.opens++
	return &engagement.OpenResult{Found: true, FirstOpen: true}, nil
}

func (s *nullStore) MarkClicked(context.Context, string, string) (*engagement.ClickResult, error) {
	s.clicks++
	return &engagement.ClickResult{FirstClick: true}, nil
}

func (s *nullStore) IncrementCampaignCounters(context.Context, string, int, int) error { return nil }
func (s *nullStore) IncrementTemplateCounters(context.Context, string, int, int) error { return nil }
func (s *nullStore) IncrementCampaignUnsubscribed(context.Context, string) error       { return nil }
func (s *nullStore) BumpContactScore(context.Context, string, int) error               { return nil }
func (s *nullStore) TouchContactEngagement(context.Context, string) error              { return nil }
func (s *nullStore) AppendActivity(context.Context, *domain.ContactActivity) error     { return nil }
func (s *nullStore) UnsubscribeContact(context.Context, string) error                  { return nil }

func newTestHandler() (*Handler, *nullStore, *LinkBuilder) {
	store := &nullStore{}
	links := NewLinkBuilder("https://t.example.com", "test-key")
	h := NewHandler(engagement.NewService(store), links, "https://app.example.com")
	return h, store, links
}

func TestOpenBeaconServesPixel(t *testing.T) {
	h, store, _ := newTestHandler()
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/track/open?cid=camp-1&uid=contact-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "image/gif" {
		t.Fatalf("content-type = %q", ct)
	}
	if cc := res.Header.Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Fatalf("cache-control = %q, must forbid caching", cc)
	}
	if store.opens != 1 {
		t.Fatalf("opens tracked = %d", store.opens)
	}
}

func TestOpenBeaconWithBadSignatureStillServesPixel(t *testing.T) {
	h, store, links := newTestHandler()
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	good := links.OpenPixelURL("camp-1", "contact-1")
	tampered := strings.Replace(good, "https://t.example.com", srv.URL, 1)
	tampered = tampered[:len(tampered)-4] + "0000"

	res, err := http.Get(tampered)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK || res.Header.Get("Content-Type") != "image/gif" {
		t.Fatalf("tampered beacon must still get a pixel: %d %s",
			res.StatusCode, res.Header.Get("Content-Type"))
	}
	if store.opens != 0 {
		t.Fatal("tampered beacon must not be tracked")
	}
}

func TestSignedOpenBeaconTracks(t *testing.T) {
	h, store, links := newTestHandler()
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	url := strings.Replace(links.OpenPixelURL("camp-1", "contact-1"),
		"https://t.example.com", srv.URL, 1)
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	res.Body.Close()
	if store.opens != 1 {
		t.Fatalf("opens tracked = %d", store.opens)
	}
}

func TestClickBeaconRedirects(t *testing.T) {
	h, store, _ := newTestHandler()
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	res, err := client.Get(srv.URL + "/track/click?cid=camp-1&uid=contact-1&url=https%3A%2F%2Fexample.com%2Fsale")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", res.StatusCode)
	}
	if loc := res.Header.Get("Location"); loc != "https://example.com/sale" {
		t.Fatalf("location = %q", loc)
	}
	if store.clicks != 1 {
		t.Fatalf("clicks tracked = %d", store.clicks)
	}
}

func TestClickWithoutURLRedirectsToSiteRoot(t *testing.T) {
	h, _, _ := newTestHandler()
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	res, err := client.Get(srv.URL + "/track/click")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()

	if loc := res.Header.Get("Location"); loc != "https://app.example.com" {
		t.Fatalf("location = %q", loc)
	}
}

func TestUnsubscribeRedirectsToConfirmation(t *testing.T) {
	h, _, _ := newTestHandler()
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	res, err := client.Get(srv.URL + "/unsubscribe?campaign=camp-1&contact=contact-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusFound {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if loc := res.Header.Get("Location"); loc != "https://app.example.com/unsubscribed" {
		t.Fatalf("location = %q", loc)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	links := NewLinkBuilder("https://t.example.com", "test-key")

	url := links.ClickURL("camp-1", "contact-1", "https://example.com/a?b=c")
	parts := strings.Split(strings.TrimPrefix(url, "https://t.example.com/track/click/"), "/")
	if len(parts) != 2 {
		t.Fatalf("unexpected url shape: %s", url)
	}

	cid, uid, dest, ok := links.Decode(parts[0], parts[1])
	if !ok {
		t.Fatal("verification failed for our own link")
	}
	if cid != "camp-1" || uid != "contact-1" || dest != "https://example.com/a?b=c" {
		t.Fatalf("decoded %q %q %q", cid, uid, dest)
	}

	if _, _, _, ok := links.Decode(parts[0], "deadbeef"); ok {
		t.Fatal("forged signature accepted")
	}
}

func TestInjectTracking(t *testing.T) {
	links := NewLinkBuilder("https://t.example.com", "test-key")
	html := `<html><body><a href="https://example.com/buy">Buy</a></body></html>`

	out := links.InjectTracking(html, "camp-1", "contact-1")

	if strings.Contains(out, `href="https://example.com/buy"`) {
		t.Fatal("original link not rewritten")
	}
	if !strings.Contains(out, "https://t.example.com/track/click/") {
		t.Fatal("tracked link missing")
	}
	if !strings.Contains(out, "https://t.example.com/track/open/") {
		t.Fatal("open pixel missing")
	}
	if !strings.Contains(out, "/track/unsubscribe/") {
		t.Fatal("unsubscribe footer missing")
	}
	if !strings.Contains(out, "</body>") {
		t.Fatal("body tag destroyed")
	}

	// Injecting into a body that already carries an unsubscribe link must
	// not add a second footer.
	again := links.InjectTracking(out, "camp-1", "contact-1")
	if strings.Count(again, "/track/unsubscribe/") != strings.Count(out, "/track/unsubscribe/") {
		t.Fatal("duplicate unsubscribe footer")
	}
}

func TestInjectTrackingWithoutBodyTag(t *testing.T) {
	links := NewLinkBuilder("https://t.example.com", "test-key")
	out := links.InjectTracking("plain fragment", "camp-1", "contact-1")
	if !strings.Contains(out, "/track/open/") {
		t.Fatal("pixel missing from fragment")
	}
}
