package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"crowdfund/internal/adapter/repo/migrations"
	"crowdfund/internal/domain"
)

// CampaignRepositorySQLite implements domain.CampaignStore on a SQLite file.
// Amounts are stored as decimal text and summed in Go inside the write
// transaction.
type CampaignRepositorySQLite struct {
	db *sql.DB
}

func toMillis(v time.Time) int64 { return v.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// OpenSQLite opens the database at path and applies embedded migrations.
// ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*CampaignRepositorySQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; this also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &CampaignRepositorySQLite{db: db}, nil
}

// Close closes the SQLite handle.
func (s *CampaignRepositorySQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *CampaignRepositorySQLite) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, manager, minimum_contribution, balance, created_at) VALUES (?, ?, ?, '0', ?)`,
		c.ID, c.Manager.String(), c.MinimumContribution.String(), toMillis(c.CreatedAt),
	)
	if isConstraintError(err) {
		return fmt.Errorf("campaign %s already exists", c.ID)
	}
	return err
}

func (s *CampaignRepositorySQLite) ListCampaignIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM campaigns ORDER BY seq ASC`)
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
	return ids, rows.Err()
}

func (s *CampaignRepositorySQLite) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	var (
		c                domain.Campaign
		manager          string
		minimum, balance string
		createdAt        int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, manager, minimum_contribution, balance, created_at FROM campaigns WHERE id = ?`, id,
	).Scan(&c.ID, &manager, &minimum, &balance, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: campaign %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	c.Manager = domain.Identity(manager)
	c.CreatedAt = fromMillis(createdAt)
	if c.MinimumContribution, err = decimal.NewFromString(minimum); err != nil {
		return nil, fmt.Errorf("decode minimum contribution: %w", err)
	}
	if c.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}

	if c.Contributors, err = s.loadContributors(ctx, id); err != nil {
		return nil, err
	}
	if c.Requests, err = s.loadRequests(ctx, id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CampaignRepositorySQLite) loadContributors(ctx context.Context, campaignID string) (map[domain.Identity]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT contributor FROM campaign_contributors WHERE campaign_id = ?`, campaignID)
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

func (s *CampaignRepositorySQLite) loadRequests(ctx context.Context, campaignID string) ([]*domain.Request, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, id, description, value, recipient, complete, created_at, finalized_at
		 FROM campaign_requests WHERE campaign_id = ? ORDER BY idx ASC`, campaignID)
	if err != nil {
		return nil, err
	}
	var requests []*domain.Request
	for rows.Next() {
		var (
			req         domain.Request
			value       string
			recipient   string
			complete    int
			createdAt   int64
			finalizedAt sql.NullInt64
		)
		if err := rows.Scan(&req.Index, &req.ID, &req.Description, &value, &recipient, &complete, &createdAt, &finalizedAt); err != nil {
			rows.Close()
			return nil, err
		}
		if req.Value, err = decimal.NewFromString(value); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode request value: %w", err)
		}
		req.Recipient = domain.Identity(recipient)
		req.Complete = complete != 0
		req.CreatedAt = fromMillis(createdAt)
		if finalizedAt.Valid {
			at := fromMillis(finalizedAt.Int64)
			req.FinalizedAt = &at
		}
		req.Approvals = map[domain.Identity]struct{}{}
		requests = append(requests, &req)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	approvals, err := s.db.QueryContext(ctx,
		`SELECT request_idx, approver FROM request_approvals WHERE campaign_id = ?`, campaignID)
	if err != nil {
		return nil, err
	}
	defer approvals.Close()
	for approvals.Next() {
		var (
			idx      int
			approver string
		)
		if err := approvals.Scan(&idx, &approver); err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(requests) {
			return nil, fmt.Errorf("campaign %s: approval for unknown request %d", campaignID, idx)
		}
		requests[idx].Approvals[domain.Identity(approver)] = struct{}{}
	}
	return requests, approvals.Err()
}

func (s *CampaignRepositorySQLite) SaveContribution(ctx context.Context, c domain.Contribution) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		balance, err := campaignBalance(ctx, tx, c.CampaignID)
		if err != nil {
			return err
		}

		var total string
		err = tx.QueryRowContext(ctx,
			`SELECT total_contributed FROM campaign_contributors WHERE campaign_id = ? AND contributor = ?`,
			c.CampaignID, c.Contributor.String(),
		).Scan(&total)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx,
				`INSERT INTO campaign_contributors (campaign_id, contributor, total_contributed, first_contributed_at) VALUES (?, ?, ?, ?)`,
				c.CampaignID, c.Contributor.String(), c.Amount.String(), toMillis(c.At))
		case err == nil:
			var prev decimal.Decimal
			if prev, err = decimal.NewFromString(total); err != nil {
				return fmt.Errorf("decode contributor total: %w", err)
			}
			_, err = tx.ExecContext(ctx,
				`UPDATE campaign_contributors SET total_contributed = ? WHERE campaign_id = ? AND contributor = ?`,
				prev.Add(c.Amount).String(), c.CampaignID, c.Contributor.String())
		}
		if err != nil {
			return fmt.Errorf("save contributor: %w", err)
		}

		if err := setCampaignBalance(ctx, tx, c.CampaignID, balance.Add(c.Amount)); err != nil {
			return err
		}
		return insertLedgerEntry(ctx, tx, c.CampaignID, nil, ledgerContribution, c.Contributor.String(), c.CampaignID, c.Amount, c.At)
	})
}

func (s *CampaignRepositorySQLite) SaveRequest(ctx context.Context, campaignID string, r *domain.Request) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := campaignBalance(ctx, tx, campaignID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO campaign_requests (campaign_id, idx, id, description, value, recipient, complete, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
			campaignID, r.Index, r.ID, r.Description, r.Value.String(), r.Recipient.String(), toMillis(r.CreatedAt))
		if isConstraintError(err) {
			return fmt.Errorf("campaign %s: request %d already exists", campaignID, r.Index)
		}
		if err != nil {
			return fmt.Errorf("insert request: %w", err)
		}
		return nil
	})
}

func (s *CampaignRepositorySQLite) SaveApproval(ctx context.Context, a domain.Approval) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var complete int
		err := tx.QueryRowContext(ctx,
			`SELECT complete FROM campaign_requests WHERE campaign_id = ? AND idx = ?`, a.CampaignID, a.RequestIndex,
		).Scan(&complete)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: request %d", domain.ErrNotFound, a.RequestIndex)
		}
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO request_approvals (campaign_id, request_idx, approver, approved_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (campaign_id, request_idx, approver) DO NOTHING`,
			a.CampaignID, a.RequestIndex, a.Approver.String(), toMillis(a.At))
		if err != nil {
			return fmt.Errorf("insert approval: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: request %d", domain.ErrAlreadyApproved, a.RequestIndex)
		}
		if complete != 0 {
			return fmt.Errorf("%w: request %d", domain.ErrAlreadyFinalized, a.RequestIndex)
		}
		return nil
	})
}

func (s *CampaignRepositorySQLite) SaveDisbursement(ctx context.Context, d domain.Disbursement) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		balance, err := campaignBalance(ctx, tx, d.CampaignID)
		if err != nil {
			return err
		}
		var complete, approvals, contributors int
		err = tx.QueryRowContext(ctx,
			`SELECT complete,
			        (SELECT COUNT(*) FROM request_approvals WHERE campaign_id = ? AND request_idx = ?),
			        (SELECT COUNT(*) FROM campaign_contributors WHERE campaign_id = ?)
			 FROM campaign_requests WHERE campaign_id = ? AND idx = ?`,
			d.CampaignID, d.RequestIndex, d.CampaignID, d.CampaignID, d.RequestIndex,
		).Scan(&complete, &approvals, &contributors)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: request %d", domain.ErrNotFound, d.RequestIndex)
		}
		if err != nil {
			return fmt.Errorf("select approval tally: %w", err)
		}
		if complete != 0 {
			return fmt.Errorf("%w: request %d", domain.ErrAlreadyFinalized, d.RequestIndex)
		}
		if !d.Approved(approvals, contributors) {
			return fmt.Errorf("%w: %d of %d contributors approved", domain.ErrInsufficientApprovals, approvals, contributors)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE campaign_requests SET complete = 1, finalized_at = ? WHERE campaign_id = ? AND idx = ? AND complete = 0`,
			toMillis(d.At), d.CampaignID, d.RequestIndex)
		if err != nil {
			return fmt.Errorf("complete request: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: request %d", domain.ErrAlreadyFinalized, d.RequestIndex)
		}
		if balance.LessThan(d.Value) {
			return fmt.Errorf("%w: campaign %s", domain.ErrInsufficientFunds, d.CampaignID)
		}
		if err := setCampaignBalance(ctx, tx, d.CampaignID, balance.Sub(d.Value)); err != nil {
			return err
		}

		credited, err := accountBalance(ctx, tx, d.Recipient)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO account_balances (identity, amount, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT (identity) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`,
			d.Recipient.String(), credited.Add(d.Value).String(), toMillis(d.At))
		if err != nil {
			return fmt.Errorf("credit recipient: %w", err)
		}
		idx := d.RequestIndex
		return insertLedgerEntry(ctx, tx, d.CampaignID, &idx, ledgerDisbursement, d.CampaignID, d.Recipient.String(), d.Value, d.At)
	})
}

func (s *CampaignRepositorySQLite) Balance(ctx context.Context, id domain.Identity) (decimal.Decimal, error) {
	return accountBalance(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func accountBalance(ctx context.Context, q queryRower, id domain.Identity) (decimal.Decimal, error) {
	var amount string
	err := q.QueryRowContext(ctx, `SELECT amount FROM account_balances WHERE identity = ?`, id.String()).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(amount)
}

func campaignBalance(ctx context.Context, tx *sql.Tx, campaignID string) (decimal.Decimal, error) {
	var balance string
	err := tx.QueryRowContext(ctx, `SELECT balance FROM campaigns WHERE id = ?`, campaignID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: campaign %s", domain.ErrNotFound, campaignID)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(balance)
}

func setCampaignBalance(ctx context.Context, tx *sql.Tx, campaignID string, balance decimal.Decimal) error {
	if _, err := tx.ExecContext(ctx, `UPDATE campaigns SET balance = ? WHERE id = ?`, balance.String(), campaignID); err != nil {
		return fmt.Errorf("update campaign balance: %w", err)
	}
	return nil
}

func insertLedgerEntry(ctx context.Context, tx *sql.Tx, campaignID string, requestIdx *int, kind, from, to string, amount decimal.Decimal, at time.Time) error {
	var idx any
	if requestIdx != nil {
		idx = *requestIdx
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (campaign_id, request_idx, kind, from_identity, to_identity, amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		campaignID, idx, kind, from, to, amount.String(), toMillis(at))
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (s *CampaignRepositorySQLite) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

var _ domain.CampaignStore = (*CampaignRepositorySQLite)(nil)
