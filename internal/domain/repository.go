package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// CampaignRepository persists campaigns and the effects of their
// transitions. Each Save method commits atomically: either every row the
// effect touches is written or none is.
type CampaignRepository interface {
	CreateCampaign(ctx context.Context, c *Campaign) error
	// ListCampaignIDs returns every campaign id in creation order.
	ListCampaignIDs(ctx context.Context) ([]string, error)
	// GetCampaign loads the full aggregate or returns ErrNotFound.
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
	SaveContribution(ctx context.Context, c Contribution) error
	SaveRequest(ctx context.Context, campaignID string, r *Request) error
	// SaveApproval returns ErrAlreadyApproved or ErrAlreadyFinalized when a
	// concurrent writer got there first.
	SaveApproval(ctx context.Context, a Approval) error
	// SaveDisbursement returns ErrAlreadyFinalized or ErrInsufficientFunds
	// when the stored state no longer allows the transfer.
	SaveDisbursement(ctx context.Context, d Disbursement) error
}

// LedgerRepository reads the funds credited to an identity.
type LedgerRepository interface {
	Balance(ctx context.Context, id Identity) (decimal.Decimal, error)
}

// CampaignStore is the full storage contract used by the service.
type CampaignStore interface {
	CampaignRepository
	LedgerRepository
	Close() error
}
