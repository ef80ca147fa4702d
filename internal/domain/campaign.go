package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Campaign is a funding pool run by its manager. Contributors who meet the
// minimum contribution may approve spending requests; the manager creates
// and finalizes them.
//
// A Campaign value is not safe for concurrent use. Callers serialize
// transitions per campaign and persist the change each method returns.
type Campaign struct {
	ID                  string
	Manager             Identity
	MinimumContribution decimal.Decimal
	Balance             decimal.Decimal
	CreatedAt           time.Time

	Contributors map[Identity]struct{}
	Requests     []*Request
}

// RequestStatus is derived from Request.Complete.
type RequestStatus string

const (
	RequestOpen      RequestStatus = "OPEN"
	RequestFinalized RequestStatus = "FINALIZED"
)

// Request is a proposed disbursement of campaign funds to Recipient.
type Request struct {
	ID          string
	Index       int
	Description string
	Value       decimal.Decimal
	Recipient   Identity
	Complete    bool
	CreatedAt   time.Time
	FinalizedAt *time.Time

	Approvals map[Identity]struct{}
}

// Contribution is the effect of an accepted Contribute call.
type Contribution struct {
	CampaignID  string
	Contributor Identity
	Amount      decimal.Decimal
	FirstTime   bool
	At          time.Time
}

// Approval is the effect of an accepted ApproveRequest call.
type Approval struct {
	CampaignID   string
	RequestIndex int
	Approver     Identity
	At           time.Time
}

// Disbursement is the effect of an accepted FinalizeRequest call: Value
// leaves the campaign balance and is credited to Recipient.
type Disbursement struct {
	CampaignID   string
	RequestIndex int
	Recipient    Identity
	Value        decimal.Decimal
	At           time.Time
	// Policy is applied again by the store against the counts it holds
	// when the write commits.
	Policy ApprovalPolicy
}

// Approved applies d.Policy, falling back to StrictMajority.
func (d Disbursement) Approved(approvals, contributors int) bool {
	if d.Policy == nil {
		return StrictMajority{}.Approved(approvals, contributors)
	}
	return d.Policy.Approved(approvals, contributors)
}

// NewCampaign builds an empty campaign managed by manager.
func NewCampaign(manager Identity, minimum decimal.Decimal, now time.Time) (*Campaign, error) {
	if manager == "" {
		return nil, fmt.Errorf("%w: manager is required", ErrInvalidInput)
	}
	if err := ValidateAmount("minimum contribution", minimum); err != nil {
		return nil, err
	}
	return &Campaign{
		ID:                  uuid.NewString(),
		Manager:             manager,
		MinimumContribution: minimum,
		Balance:             decimal.Zero,
		CreatedAt:           now.UTC(),
		Contributors:        map[Identity]struct{}{},
	}, nil
}

// ContributorsCount returns the number of distinct contributors.
func (c *Campaign) ContributorsCount() int { return len(c.Contributors) }

// IsContributor reports whether id has contributed at least the minimum.
func (c *Campaign) IsContributor(id Identity) bool {
	_, ok := c.Contributors[id]
	return ok
}

// Request returns the request at index or ErrNotFound.
func (c *Campaign) Request(index int) (*Request, error) {
	if index < 0 || index >= len(c.Requests) {
		return nil, fmt.Errorf("%w: request %d", ErrNotFound, index)
	}
	return c.Requests[index], nil
}

// Contribute accepts amount from contributor when it meets the minimum.
func (c *Campaign) Contribute(from Identity, amount decimal.Decimal, now time.Time) (Contribution, error) {
	if from == "" {
		return Contribution{}, fmt.Errorf("%w: contributor is required", ErrInvalidInput)
	}
	if err := ValidateAmount("amount", amount); err != nil {
		return Contribution{}, err
	}
	if amount.LessThan(c.MinimumContribution) {
		return Contribution{}, fmt.Errorf("%w: %s is below the minimum of %s", ErrInsufficientAmount, amount, c.MinimumContribution)
	}

	first := !c.IsContributor(from)
	if first {
		c.Contributors[from] = struct{}{}
	}
	c.Balance = c.Balance.Add(amount)

	return Contribution{
		CampaignID:  c.ID,
		Contributor: from,
		Amount:      amount,
		FirstTime:   first,
		At:          now.UTC(),
	}, nil
}

// CreateRequest appends an open request. Only the manager may call it.
func (c *Campaign) CreateRequest(caller Identity, description string, value decimal.Decimal, recipient Identity, now time.Time) (*Request, error) {
	if caller != c.Manager {
		return nil, fmt.Errorf("%w: only the manager can create requests", ErrUnauthorized)
	}
	if recipient == "" {
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidInput)
	}
	if err := ValidateAmount("value", value); err != nil {
		return nil, err
	}

	req := &Request{
		ID:          uuid.NewString(),
		Index:       len(c.Requests),
		Description: strings.TrimSpace(description),
		Value:       value,
		Recipient:   recipient,
		CreatedAt:   now.UTC(),
		Approvals:   map[Identity]struct{}{},
	}
	c.Requests = append(c.Requests, req)
	return req, nil
}

// ApproveRequest records from's approval of the request at index.
func (c *Campaign) ApproveRequest(index int, from Identity, now time.Time) (Approval, error) {
	req, err := c.Request(index)
	if err != nil {
		return Approval{}, err
	}
	if !c.IsContributor(from) {
		return Approval{}, fmt.Errorf("%w: only contributors can approve requests", ErrUnauthorized)
	}
	if req.HasApproved(from) {
		return Approval{}, fmt.Errorf("%w: request %d", ErrAlreadyApproved, index)
	}
	if req.Complete {
		return Approval{}, fmt.Errorf("%w: request %d", ErrAlreadyFinalized, index)
	}

	req.Approvals[from] = struct{}{}
	return Approval{
		CampaignID:   c.ID,
		RequestIndex: index,
		Approver:     from,
		At:           now.UTC(),
	}, nil
}

// FinalizeRequest completes the request at index and moves its value to the
// recipient. policy decides whether enough contributors approved.
func (c *Campaign) FinalizeRequest(index int, caller Identity, policy ApprovalPolicy, now time.Time) (Disbursement, error) {
	if caller != c.Manager {
		return Disbursement{}, fmt.Errorf("%w: only the manager can finalize requests", ErrUnauthorized)
	}
	req, err := c.Request(index)
	if err != nil {
		return Disbursement{}, err
	}
	if req.Complete {
		return Disbursement{}, fmt.Errorf("%w: request %d", ErrAlreadyFinalized, index)
	}
	if policy == nil {
		policy = StrictMajority{}
	}
	if !policy.Approved(req.ApprovalCount(), c.ContributorsCount()) {
		return Disbursement{}, fmt.Errorf("%w: %d of %d contributors approved", ErrInsufficientApprovals, req.ApprovalCount(), c.ContributorsCount())
	}
	if c.Balance.LessThan(req.Value) {
		return Disbursement{}, fmt.Errorf("%w: balance %s, request value %s", ErrInsufficientFunds, c.Balance, req.Value)
	}

	at := now.UTC()
	c.Balance = c.Balance.Sub(req.Value)
	req.Complete = true
	req.FinalizedAt = &at

	return Disbursement{
		CampaignID:   c.ID,
		RequestIndex: index,
		Recipient:    req.Recipient,
		Value:        req.Value,
		At:           at,
		Policy:       policy,
	}, nil
}

// Clone returns a deep copy of c.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	out := *c
	out.Contributors = make(map[Identity]struct{}, len(c.Contributors))
	for id := range c.Contributors {
		out.Contributors[id] = struct{}{}
	}
	out.Requests = make([]*Request, len(c.Requests))
	for i, r := range c.Requests {
		out.Requests[i] = r.Clone()
	}
	return &out
}

// ApprovalCount returns the number of distinct approvers.
func (r *Request) ApprovalCount() int { return len(r.Approvals) }

// HasApproved reports whether id approved r.
func (r *Request) HasApproved(id Identity) bool {
	_, ok := r.Approvals[id]
	return ok
}

// Status reports whether r is still open.
func (r *Request) Status() RequestStatus {
	if r.Complete {
		return RequestFinalized
	}
	return RequestOpen
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := *r
	if r.FinalizedAt != nil {
		at := *r.FinalizedAt
		out.FinalizedAt = &at
	}
	out.Approvals = make(map[Identity]struct{}, len(r.Approvals))
	for id := range r.Approvals {
		out.Approvals[id] = struct{}{}
	}
	return &out
}
