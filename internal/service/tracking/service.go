// Package tracking processes open and click beacons: idempotent first-event
// counter increments across Campaign, Template, and Contact, plus the
// append-only contact activity trail. Failures here are logged and swallowed
// by the beacon handlers; the email reader always gets a pixel or redirect.
package tracking

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/ignite/pulsemail/internal/domain"
	"github.com/ignite/pulsemail/internal/pkg/logger"
)

// Engagement score weights: a first open is worth 1, a first click 3.
const (
	scoreOpen  = 1
	scoreClick = 3
)

// Service applies engagement events to the store.
type Service struct {
	store Store
}

// NewService creates the engagement tracker.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// TrackOpen processes an open beacon for one (campaign, contact) pair.
// Counter increments fire only on the first open, gated by the EmailLog
// row itself; repeat opens still refresh the contact's last_engaged_at.
// A missing log row is a no-op.
func (s *Service) TrackOpen(ctx context.Context, campaignID, contactID string) error {
	if campaignID == "" || contactID == "" {
		return nil
	}

	res, err := s.store.MarkOpened(ctx, campaignID, contactID)
	if err != nil {
		return err
	}
	if !res.Found {
		return nil
	}

	if !res.FirstOpen {
		if err := s.store.TouchContactEngagement(ctx, contactID); err != nil {
			logger.Warn("touch engagement", "contact_id", contactID, "error", err)
		}
		return nil
	}

	// First open: fan the one-time increments out. Each write is
	// independent; a failure is logged and the rest still run.
	if err := s.store.IncrementCampaignCounters(ctx, campaignID, 1, 0); err != nil {
		logger.Warn("campaign open counter", "campaign_id", campaignID, "error", err)
	}
	if err := s.store.IncrementTemplateCounters(ctx, campaignID, 1, 0); err != nil {
		logger.Warn("template open counter", "campaign_id", campaignID, "error", err)
	}
	if err := s.store.BumpContactScore(ctx, contactID, scoreOpen); err != nil {
		logger.Warn("contact score", "contact_id", contactID, "error", err)
	}
	if err := s.store.AppendActivity(ctx, &domain.ContactActivity{
		ID:        uuid.New().String(),
		ContactID: contactID,
		Type:      domain.ActivityEmailOpened,
		Title:     "Email opened",
		Metadata:  map[string]any{"campaign_id": campaignID},
	}); err != nil {
		logger.Warn("append activity", "contact_id", contactID, "error", err)
	}
	return nil
}

// TrackClick processes a click beacon and returns the URL to redirect to.
// The redirect is always computed, even when tracking fails or the log row
// is missing. A click implies an open: when opened_at was still null the
// open counters are incremented alongside the click counters, exactly once.
func (s *Service) TrackClick(ctx context.Context, campaignID, contactID, rawURL, siteURL string) (string, error) {
	dest := ResolveClickURL(rawURL, siteURL)

	if campaignID == "" || contactID == "" {
		return dest, nil
	}

	res, err := s.store.MarkClicked(ctx, campaignID, contactID)
	if err != nil {
		return dest, err
	}
	if !res.FirstClick {
		return dest, nil
	}

	opened := 0
	if res.OpenBackfilled {
		opened = 1
	}
	if err := s.store.IncrementCampaignCounters(ctx, campaignID, opened, 1); err != nil {
		logger.Warn("campaign click counter", "campaign_id", campaignID, "error", err)
	}
	if err := s.store.IncrementTemplateCounters(ctx, campaignID, opened, 1); err != nil {
		logger.Warn("template click counter", "campaign_id", campaignID, "error", err)
	}
	if err := s.store.BumpContactScore(ctx, contactID, scoreClick); err != nil {
		logger.Warn("contact score", "contact_id", contactID, "error", err)
	}
	if err := s.store.AppendActivity(ctx, &domain.ContactActivity{
		ID:        uuid.New().String(),
		ContactID: contactID,
		Type:      domain.ActivityEmailClicked,
		Title:     "Email link clicked",
		Metadata:  map[string]any{"campaign_id": campaignID, "url": dest},
	}); err != nil {
		logger.Warn("append activity", "contact_id", contactID, "error", err)
	}
	return dest, nil
}

// Unsubscribe flags the contact do-not-email, records the status change,
// and counts the unsubscribe on the campaign when one is known.
func (s *Service) Unsubscribe(ctx context.Context, campaignID, contactID string) error {
	if contactID == "" {
		return nil
	}
	if err := s.store.UnsubscribeContact(ctx, contactID); err != nil {
		return err
	}
	if campaignID != "" {
		if err := s.store.IncrementCampaignUnsubscribed(ctx, campaignID); err != nil {
			logger.Warn("campaign unsubscribe counter", "campaign_id", campaignID, "error", err)
		}
	}
	if err := s.store.AppendActivity(ctx, &domain.ContactActivity{
		ID:        uuid.New().String(),
		ContactID: contactID,
		Type:      domain.ActivityUnsubscribed,
		Title:     "Unsubscribed",
		Metadata:  map[string]any{"campaign_id": campaignID},
	}); err != nil {
		logger.Warn("append activity", "contact_id", contactID, "error", err)
	}
	return nil
}

// ResolveClickURL turns the raw url= parameter into an absolute redirect
// target. Non-absolute values are URL-decoded once, then prefixed with
// https:// if still not absolute. An empty value falls back to the site
// root so the redirect always has somewhere to go.
func ResolveClickURL(rawURL, siteURL string) string {
	if rawURL == "" {
		if siteURL != "" {
			return siteURL
		}
		return "/"
	}
	if isAbsoluteURL(rawURL) {
		return rawURL
	}
	if decoded, err := url.QueryUnescape(rawURL); err == nil {
		rawURL = decoded
	}
	if isAbsoluteURL(rawURL) {
		return rawURL
	}
	return "https://" + rawURL
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
