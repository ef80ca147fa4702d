package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"crowdfund/internal/domain"
	"crowdfund/internal/infra"
	"crowdfund/internal/sqlinline"
)

const (
	ledgerContribution = "contribution"
	ledgerDisbursement = "disbursement"
)

// CampaignRepositoryPG implements domain.CampaignStore using PostgreSQL.
// Writes run in one transaction that first locks the campaign row, so
// several API processes can share the database.
type CampaignRepositoryPG struct {
	sql   infra.TxExecutor
	close func()
}

// NewCampaignRepository creates a new campaign repo. closeFn, if set, runs on Close.
func NewCampaignRepository(sql infra.TxExecutor, closeFn func()) *CampaignRepositoryPG {
	return &CampaignRepositoryPG{sql: sql, close: closeFn}
}

// EnsureSchema creates the tables when they are missing.
func (r *CampaignRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.sql.Exec(ctx, sqlinline.Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (r *CampaignRepositoryPG) Close() error {
	if r.close != nil {
		r.close()
	}
	return nil
}

// CreateCampaign inserts a new campaign record.
func (r *CampaignRepositoryPG) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertCampaign, c.ID, c.Manager.String(), c.MinimumContribution.String(), c.CreatedAt)
	return err
}

// ListCampaignIDs returns campaign ids in creation order.
func (r *CampaignRepositoryPG) ListCampaignIDs(ctx context.Context) ([]string, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListCampaignIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetCampaign loads the campaign with its contributors, requests and approvals.
func (r *CampaignRepositoryPG) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	if !isUUID(id) {
		return nil, fmt.Errorf("%w: campaign %s", domain.ErrNotFound, id)
	}

	var (
		c                domain.Campaign
		manager          string
		minimum, balance string
	)
	row := r.sql.QueryRow(ctx, sqlinline.QSelectCampaign, id)
	if err := row.Scan(&c.ID, &manager, &minimum, &balance, &c.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, fmt.Errorf("%w: campaign %s", domain.ErrNotFound, id)
		}
		return nil, err
	}
	var err error
	c.Manager = domain.Identity(manager)
	if c.MinimumContribution, err = decimal.NewFromString(minimum); err != nil {
		return nil, fmt.Errorf("decode minimum contribution: %w", err)
	}
	if c.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()

	if c.Contributors, err = r.loadContributors(ctx, id); err != nil {
		return nil, err
	}
	if c.Requests, err = r.loadRequests(ctx, id); err != nil {
		return nil, err
	}
	if err := r.loadApprovals(ctx, id, c.Requests); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepositoryPG) loadContributors(ctx context.Context, campaignID string) (map[domain.Identity]struct{}, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListContributors, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[domain.Identity]struct{}{}
	for rows.Next() {
		var contributor string
		if err := rows.Scan(&contributor); err != nil {
			return nil, err
		}
		out[domain.Identity(contributor)] = struct{}{}
	}
	return out, rows.Err()
}

func (r *CampaignRepositoryPG) loadRequests(ctx context.Context, campaignID string) ([]*domain.Request, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListRequests, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Request
	for rows.Next() {
		var (
			req         domain.Request
			value       string
			recipient   string
			finalizedAt *time.Time
		)
		if err := rows.Scan(&req.Index, &req.ID, &req.Description, &value, &recipient, &req.Complete, &req.CreatedAt, &finalizedAt); err != nil {
			return nil, err
		}
		if req.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("decode request value: %w", err)
		}
		req.Recipient = domain.Identity(recipient)
		req.CreatedAt = req.CreatedAt.UTC()
		if finalizedAt != nil {
			at := finalizedAt.UTC()
			req.FinalizedAt = &at
		}
		req.Approvals = map[domain.Identity]struct{}{}
		out = append(out, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, req := range out {
		if req.Index != i {
			return nil, fmt.Errorf("campaign %s: request index gap at %d", campaignID, i)
		}
	}
	return out, nil
}

func (r *CampaignRepositoryPG) loadApprovals(ctx context.Context, campaignID string, requests []*domain.Request) error {
	rows, err := r.sql.Query(ctx, sqlinline.QListApprovals, campaignID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idx      int
			approver string
		)
		if err := rows.Scan(&idx, &approver); err != nil {
			return err
		}
		if idx < 0 || idx >= len(requests) {
			return fmt.Errorf("campaign %s: approval for unknown request %d", campaignID, idx)
		}
		requests[idx].Approvals[domain.Identity(approver)] = struct{}{}
	}
	return rows.Err()
}

// SaveContribution records a contribution and credits the campaign balance.
func (r *CampaignRepositoryPG) SaveContribution(ctx context.Context, c domain.Contribution) error {
	return r.withCampaignLock(ctx, c.CampaignID, func(tx infra.SQLExecutor) error {
		amount := c.Amount.String()
		tag, err := tx.Exec(ctx, sqlinline.QInsertContributor, c.CampaignID, c.Contributor.String(), amount, c.At)
		if err != nil {
			return fmt.Errorf("insert contributor: %w", err)
		}
		newContributors := int(tag.RowsAffected())
		if newContributors == 0 {
			if _, err := tx.Exec(ctx, sqlinline.QAddContributorTotal, c.CampaignID, c.Contributor.String(), amount); err != nil {
				return fmt.Errorf("update contributor total: %w", err)
			}
		}
		if _, err := tx.Exec(ctx, sqlinline.QCreditCampaign, c.CampaignID, amount, newContributors); err != nil {
			return fmt.Errorf("credit campaign: %w", err)
		}
		_, err = tx.Exec(ctx, sqlinline.QInsertLedgerEntry, c.CampaignID, nil, ledgerContribution, c.Contributor.String(), c.CampaignID, amount, c.At)
		if err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
		return nil
	})
}

// SaveRequest appends a spending request.
func (r *CampaignRepositoryPG) SaveRequest(ctx context.Context, campaignID string, req *domain.Request) error {
	return r.withCampaignLock(ctx, campaignID, func(tx infra.SQLExecutor) error {
		_, err := tx.Exec(ctx, sqlinline.QInsertRequest,
			campaignID, req.Index, req.ID, req.Description, req.Value.String(), req.Recipient.String(), req.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert request: %w", err)
		}
		return nil
	})
}

// SaveApproval records one approval; duplicates and finalized requests are rejected.
func (r *CampaignRepositoryPG) SaveApproval(ctx context.Context, a domain.Approval) error {
	return r.withCampaignLock(ctx, a.CampaignID, func(tx infra.SQLExecutor) error {
		tag, err := tx.Exec(ctx, sqlinline.QInsertApproval, a.CampaignID, a.RequestIndex, a.Approver.String(), a.At)
		if err != nil {
			return fmt.Errorf("insert approval: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: request %d", domain.ErrAlreadyApproved, a.RequestIndex)
		}
		tag, err = tx.Exec(ctx, sqlinline.QIncrementApprovalCount, a.CampaignID, a.RequestIndex)
		if err != nil {
			return fmt.Errorf("increment approval count: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: request %d", domain.ErrAlreadyFinalized, a.RequestIndex)
		}
		return nil
	})
}

// SaveDisbursement completes the request, debits the campaign and credits
// the recipient in one transaction. The approval policy is checked against
// the counters read under the campaign lock.
func (r *CampaignRepositoryPG) SaveDisbursement(ctx context.Context, d domain.Disbursement) error {
	return r.withCampaignLock(ctx, d.CampaignID, func(tx infra.SQLExecutor) error {
		var (
			complete     bool
			approvals    int
			contributors int
		)
		err := tx.QueryRow(ctx, sqlinline.QSelectApprovalTally, d.CampaignID, d.RequestIndex).Scan(&complete, &approvals, &contributors)
		if err != nil {
			if infra.IsNoRows(err) {
				return fmt.Errorf("%w: request %d", domain.ErrNotFound, d.RequestIndex)
			}
			return fmt.Errorf("select approval tally: %w", err)
		}
		if complete {
			return fmt.Errorf("%w: request %d", domain.ErrAlreadyFinalized, d.RequestIndex)
		}
		if !d.Approved(approvals, contributors) {
			return fmt.Errorf("%w: %d of %d contributors approved", domain.ErrInsufficientApprovals, approvals, contributors)
		}

		value := d.Value.String()
		tag, err := tx.Exec(ctx, sqlinline.QCompleteRequest, d.CampaignID, d.RequestIndex, d.At)
		if err != nil {
			return fmt.Errorf("complete request: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: request %d", domain.ErrAlreadyFinalized, d.RequestIndex)
		}
		tag, err = tx.Exec(ctx, sqlinline.QDebitCampaign, d.CampaignID, value)
		if err != nil {
			return fmt.Errorf("debit campaign: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: campaign %s", domain.ErrInsufficientFunds, d.CampaignID)
		}
		if _, err := tx.Exec(ctx, sqlinline.QCreditAccount, d.Recipient.String(), value, d.At); err != nil {
			return fmt.Errorf("credit recipient: %w", err)
		}
		_, err = tx.Exec(ctx, sqlinline.QInsertLedgerEntry, d.CampaignID, d.RequestIndex, ledgerDisbursement, d.CampaignID, d.Recipient.String(), value, d.At)
		if err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
		return nil
	})
}

// Balance returns the funds credited to id; unknown identities hold zero.
func (r *CampaignRepositoryPG) Balance(ctx context.Context, id domain.Identity) (decimal.Decimal, error) {
	var amount string
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectAccountBalance, id.String()).Scan(&amount); err != nil {
		if infra.IsNoRows(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(amount)
}

func (r *CampaignRepositoryPG) withCampaignLock(ctx context.Context, campaignID string, fn func(tx infra.SQLExecutor) error) error {
	return r.sql.WithTx(ctx, func(tx infra.SQLExecutor) error {
		var locked string
		if err := tx.QueryRow(ctx, sqlinline.QSelectCampaignForUpdate, campaignID).Scan(&locked); err != nil {
			if infra.IsNoRows(err) {
				return fmt.Errorf("%w: campaign %s", domain.ErrNotFound, campaignID)
			}
			return fmt.Errorf("lock campaign: %w", err)
		}
		return fn(tx)
	})
}

var _ domain.CampaignStore = (*CampaignRepositoryPG)(nil)
