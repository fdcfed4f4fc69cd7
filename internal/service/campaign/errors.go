package campaign

import (
	"errors"
	"fmt"

	"github.com/ignite/pulsemail/internal/domain"
)

// ErrNotFound is returned when a campaign doesn't exist for the user.
var ErrNotFound = errors.New("campaign not found")

// ErrNoTemplate is returned when starting a campaign with no template assigned.
var ErrNoTemplate = errors.New("campaign has no template assigned")

// ErrNoRecipients is returned when the resolver matches zero active contacts.
var ErrNoRecipients = errors.New("campaign has no matching recipients")

// InvalidStateError reports a lifecycle transition attempted outside the
// legal table. It names both the current and the requested status.
type InvalidStateError struct {
	Current   domain.CampaignStatus
	Requested string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s campaign in status %q", e.Requested, e.Current)
}
