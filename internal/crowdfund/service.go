// Package crowdfund runs the campaign factory and the per-campaign state
// machine on top of a domain.CampaignStore.
package crowdfund

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crowdfund/internal/domain"
	"crowdfund/internal/infra"
)

// Options configures a Service. Zero values select the defaults.
type Options struct {
	Policy domain.ApprovalPolicy
	Logger *infra.Logger
	Now    func() time.Time
}

// Service owns the deployed-campaign registry and applies transitions.
// Transitions on one campaign run one at a time: the campaign is loaded,
// the transition is validated against it, and its effect is persisted
// before the next transition on that campaign starts.
type Service struct {
	store  domain.CampaignStore
	policy domain.ApprovalPolicy
	logger infra.Logger
	now    func() time.Time
	locks  keyedMutex
}

// NewService builds a Service over store.
func NewService(store domain.CampaignStore, opts Options) *Service {
	s := &Service{
		store:  store,
		policy: opts.Policy,
		logger: zerolog.Nop(),
		now:    opts.Now,
	}
	if s.policy == nil {
		s.policy = domain.StrictMajority{}
	}
	if opts.Logger != nil {
		s.logger = opts.Logger.With().Str("component", "crowdfund").Logger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Policy returns the approval policy used by FinalizeRequest.
func (s *Service) Policy() domain.ApprovalPolicy { return s.policy }

// CreateCampaign deploys a new campaign managed by caller and appends it to
// the registry.
func (s *Service) CreateCampaign(ctx context.Context, caller domain.Identity, minimum decimal.Decimal) (*domain.Campaign, error) {
	c, err := domain.NewCampaign(caller, minimum, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateCampaign(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	s.logger.Info().
		Str("campaign_id", c.ID).
		Str("manager", c.Manager.String()).
		Str("minimum_contribution", c.MinimumContribution.String()).
		Msg("campaign created")
	return c, nil
}

// DeployedCampaigns lists every campaign id in creation order.
func (s *Service) DeployedCampaigns(ctx context.Context) ([]string, error) {
	ids, err := s.store.ListCampaignIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Campaign loads a campaign snapshot.
func (s *Service) Campaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.store.GetCampaign(ctx, id)
}

// Contribute adds amount from contributor to the campaign.
func (s *Service) Contribute(ctx context.Context, campaignID string, from domain.Identity, amount decimal.Decimal) (*domain.Campaign, error) {
	var out *domain.Campaign
	err := s.transition(ctx, campaignID, "contribute", func(c *domain.Campaign, now time.Time) error {
		contribution, err := c.Contribute(from, amount, now)
		if err != nil {
			return err
		}
		if err := s.store.SaveContribution(ctx, contribution); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// CreateRequest appends a spending request. Only the manager may call it.
func (s *Service) CreateRequest(ctx context.Context, campaignID string, caller domain.Identity, description string, value decimal.Decimal, recipient domain.Identity) (*domain.Request, error) {
	var out *domain.Request
	err := s.transition(ctx, campaignID, "create_request", func(c *domain.Campaign, now time.Time) error {
		req, err := c.CreateRequest(caller, description, value, recipient, now)
		if err != nil {
			return err
		}
		if err := s.store.SaveRequest(ctx, c.ID, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	return out, err
}

// ApproveRequest records a contributor's approval and returns the request.
func (s *Service) ApproveRequest(ctx context.Context, campaignID string, index int, from domain.Identity) (*domain.Request, error) {
	var out *domain.Request
	err := s.transition(ctx, campaignID, "approve_request", func(c *domain.Campaign, now time.Time) error {
		approval, err := c.ApproveRequest(index, from, now)
		if err != nil {
			return err
		}
		if err := s.store.SaveApproval(ctx, approval); err != nil {
			return err
		}
		out = c.Requests[index]
		return nil
	})
	return out, err
}

// FinalizeRequest transfers the request value to its recipient and marks
// it complete. Only the manager may call it, and only once per request.
func (s *Service) FinalizeRequest(ctx context.Context, campaignID string, index int, caller domain.Identity) (*domain.Request, error) {
	var out *domain.Request
	err := s.transition(ctx, campaignID, "finalize_request", func(c *domain.Campaign, now time.Time) error {
		d, err := c.FinalizeRequest(index, caller, s.policy, now)
		if err != nil {
			return err
		}
		if err := s.store.SaveDisbursement(ctx, d); err != nil {
			return err
		}
		out = c.Requests[index]
		return nil
	})
	return out, err
}

// Requests returns every request of the campaign in creation order.
func (s *Service) Requests(ctx context.Context, campaignID string) ([]*domain.Request, error) {
	c, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return c.Requests, nil
}

// Request returns one request of the campaign.
func (s *Service) Request(ctx context.Context, campaignID string, index int) (*domain.Request, error) {
	c, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return c.Request(index)
}

// IsContributor reports whether id is a contributor of the campaign.
func (s *Service) IsContributor(ctx context.Context, campaignID string, id domain.Identity) (bool, error) {
	c, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return false, err
	}
	return c.IsContributor(id), nil
}

// HasApproved reports whether id approved the request at index.
func (s *Service) HasApproved(ctx context.Context, campaignID string, index int, id domain.Identity) (bool, error) {
	req, err := s.Request(ctx, campaignID, index)
	if err != nil {
		return false, err
	}
	return req.HasApproved(id), nil
}

// Balance returns the funds credited to id by finalized requests.
func (s *Service) Balance(ctx context.Context, id domain.Identity) (decimal.Decimal, error) {
	return s.store.Balance(ctx, id)
}

// transition serializes fn against other transitions on the same campaign.
// fn receives a fresh copy of the stored campaign; if fn fails the copy is
// dropped, so a rejected transition leaves no trace.
func (s *Service) transition(ctx context.Context, campaignID, op string, fn func(*domain.Campaign, time.Time) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.locks.lock(campaignID)
	defer unlock()

	c, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if err := fn(c, s.now()); err != nil {
		s.logger.Debug().Err(err).Str("campaign_id", campaignID).Str("op", op).Msg("transition rejected")
		return err
	}
	s.logger.Info().Str("campaign_id", campaignID).Str("op", op).Msg("transition applied")
	return nil
}
