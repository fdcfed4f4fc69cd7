package tracking

import (
	"context"

	"github.com/ignite/pulsemail/internal/domain"
)

// OpenResult reports what an atomic open-mark did to the EmailLog row.
type OpenResult struct {
	Found     bool // the (campaign, contact) log row exists
	FirstOpen bool // opened_at was null before this event
}

// ClickResult reports what an atomic click-mark did to the EmailLog row.
// A repeat click and a missing row both report FirstClick=false; neither
// changes any counter.
type ClickResult struct {
	FirstClick     bool // status was not yet clicked
	OpenBackfilled bool // opened_at was null and got stamped by this click
}

// Store is the persistence contract for engagement tracking. The EmailLog
// row is the single idempotency token: MarkOpened and MarkClicked must be
// single conditional updates whose affected-row count is the first-event
// signal, so two racing beacons can never both win.
type Store interface {
	// MarkOpened stamps opened_at if null and advances status sent->opened.
	// Never touches a clicked/bounced/failed status and never re-stamps
	// opened_at.
	MarkOpened(ctx context.Context, campaignID, contactID string) (*OpenResult, error)

	// MarkClicked sets status=clicked and clicked_at, backfilling opened_at
	// when null (a click implies an open). Click is the highest-precedence
	// status and always wins.
	MarkClicked(ctx context.Context, campaignID, contactID string) (*ClickResult, error)

	// IncrementCampaignCounters adds to total_opened / total_clicked.
	IncrementCampaignCounters(ctx context.Context, campaignID string, opened, clicked int) error

	// IncrementTemplateCounters mirrors the same increments onto the
	// campaign's template, if one is assigned.
	IncrementTemplateCounters(ctx context.Context, campaignID string, opened, clicked int) error

	// IncrementCampaignUnsubscribed adds one to total_unsubscribed.
	IncrementCampaignUnsubscribed(ctx context.Context, campaignID string) error

	// BumpContactScore adds delta to the engagement score and refreshes
	// last_engaged_at.
	BumpContactScore(ctx context.Context, contactID string, delta int) error

	// TouchContactEngagement refreshes last_engaged_at only. Used for
	// repeat opens, where recency is tracked but the count is not.
	TouchContactEngagement(ctx context.Context, contactID string) error

	// AppendActivity inserts an append-only timeline entry.
	AppendActivity(ctx context.Context, a *domain.ContactActivity) error

	// UnsubscribeContact sets do_not_email and the unsubscribed status.
	UnsubscribeContact(ctx context.Context, contactID string) error
}
