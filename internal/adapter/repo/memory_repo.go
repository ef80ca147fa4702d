package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"crowdfund/internal/domain"
)

// MemoryRepository keeps campaigns in process memory. It is the default
// driver for development and backs the service tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	order     []string
	campaigns map[string]*domain.Campaign
	balances  map[domain.Identity]decimal.Decimal
}

// NewMemoryRepository returns an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		campaigns: map[string]*domain.Campaign{},
		balances:  map[domain.Identity]decimal.Decimal{},
	}
}

func (m *MemoryRepository) Close() error { return nil }

func (m *MemoryRepository) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.campaigns[c.ID]; exists {
		return fmt.Errorf("campaign %s already exists", c.ID)
	}
	m.campaigns[c.ID] = c.Clone()
	m.order = append(m.order, c.ID)
	return nil
}

func (m *MemoryRepository) ListCampaignIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.order...), nil
}

func (m *MemoryRepository) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("%w: campaign %s", domain.ErrNotFound, id)
	}
	return c.Clone(), nil
}

func (m *MemoryRepository) SaveContribution(ctx context.Context, c domain.Contribution) error {
	return m.update(ctx, c.CampaignID, func(stored *domain.Campaign) error {
		stored.Contributors[c.Contributor] = struct{}{}
		stored.Balance = stored.Balance.Add(c.Amount)
		return nil
	})
}

func (m *MemoryRepository) SaveRequest(ctx context.Context, campaignID string, r *domain.Request) error {
	return m.update(ctx, campaignID, func(stored *domain.Campaign) error {
		if r.Index != len(stored.Requests) {
			return fmt.Errorf("campaign %s: request index %d, want %d", campaignID, r.Index, len(stored.Requests))
		}
		stored.Requests = append(stored.Requests, r.Clone())
		return nil
	})
}

func (m *MemoryRepository) SaveApproval(ctx context.Context, a domain.Approval) error {
	return m.update(ctx, a.CampaignID, func(stored *domain.Campaign) error {
		req, err := stored.Request(a.RequestIndex)
		if err != nil {
			return err
		}
		if req.HasApproved(a.Approver) {
			return fmt.Errorf("%w: request %d", domain.ErrAlreadyApproved, a.RequestIndex)
		}
		if req.Complete {
			return fmt.Errorf("%w: request %d", domain.ErrAlreadyFinalized, a.RequestIndex)
		}
		req.Approvals[a.Approver] = struct{}{}
		return nil
	})
}

func (m *MemoryRepository) SaveDisbursement(ctx context.Context, d domain.Disbursement) error {
	return m.update(ctx, d.CampaignID, func(stored *domain.Campaign) error {
		req, err := stored.Request(d.RequestIndex)
		if err != nil {
			return err
		}
		if req.Complete {
			return fmt.Errorf("%w: request %d", domain.ErrAlreadyFinalized, d.RequestIndex)
		}
		if !d.Approved(req.ApprovalCount(), stored.ContributorsCount()) {
			return fmt.Errorf("%w: %d of %d contributors approved", domain.ErrInsufficientApprovals, req.ApprovalCount(), stored.ContributorsCount())
		}
		if stored.Balance.LessThan(d.Value) {
			return fmt.Errorf("%w: campaign %s", domain.ErrInsufficientFunds, d.CampaignID)
		}
		at := d.At
		req.Complete = true
		req.FinalizedAt = &at
		stored.Balance = stored.Balance.Sub(d.Value)
		m.balances[d.Recipient] = m.balances[d.Recipient].Add(d.Value)
		return nil
	})
}

func (m *MemoryRepository) Balance(ctx context.Context, id domain.Identity) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[id], nil
}

// update runs fn under the write lock. fn validates before it mutates, so
// an error leaves the stored campaign untouched.
func (m *MemoryRepository) update(ctx context.Context, id string, fn func(*domain.Campaign) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.campaigns[id]
	if !ok {
		return fmt.Errorf("%w: campaign %s", domain.ErrNotFound, id)
	}
	return fn(stored)
}

var _ domain.CampaignStore = (*MemoryRepository)(nil)
