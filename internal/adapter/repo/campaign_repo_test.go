package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"crowdfund/internal/domain"
	"crowdfund/internal/infra"
	"crowdfund/internal/sqlinline"
)

const testCampaignID = "3f0c9f5e-4c1b-4a8e-9a51-0c7d2e6b1f42"

type execCall struct {
	query string
	args  []any
}

// stubExecutor answers Exec with per-query command tags and QueryRow with
// per-query scanners. WithTx runs fn against itself and records whether
// the transaction committed.
type stubExecutor struct {
	tags      map[string]string
	rows      map[string]func(dest ...any) error
	execs     []execCall
	committed bool
	rolled    bool
}

func (s *stubExecutor) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, execCall{query: query, args: args})
	if tag, ok := s.tags[query]; ok {
		return pgconn.NewCommandTag(tag), nil
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (s *stubExecutor) QueryRow(_ context.Context, query string, _ ...any) pgx.Row {
	if scan, ok := s.rows[query]; ok {
		return stubRow{scan: scan}
	}
	return stubRow{}
}

func (s *stubExecutor) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (s *stubExecutor) WithTx(_ context.Context, fn func(tx infra.SQLExecutor) error) error {
	if err := fn(s); err != nil {
		s.rolled = true
		return err
	}
	s.committed = true
	return nil
}

func (s *stubExecutor) executed(query string) bool {
	for _, call := range s.execs {
		if call.query == query {
			return true
		}
	}
	return false
}

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

func lockedCampaign() map[string]func(dest ...any) error {
	return lockedCampaignWithTally(false, 1, 1)
}

// lockedCampaignWithTally also answers the approval tally read by SaveDisbursement.
func lockedCampaignWithTally(complete bool, approvals, contributors int) map[string]func(dest ...any) error {
	return map[string]func(dest ...any) error{
		sqlinline.QSelectCampaignForUpdate: func(dest ...any) error {
			*dest[0].(*string) = testCampaignID
			return nil
		},
		sqlinline.QSelectApprovalTally: func(dest ...any) error {
			*dest[0].(*bool) = complete
			*dest[1].(*int) = approvals
			*dest[2].(*int) = contributors
			return nil
		},
	}
}

func TestSaveDisbursementAlreadyFinalized(t *testing.T) {
	stub := &stubExecutor{
		tags: map[string]string{sqlinline.QCompleteRequest: "UPDATE 0"},
		rows: lockedCampaign(),
	}
	repo := NewCampaignRepository(stub, nil)

	err := repo.SaveDisbursement(context.Background(), domain.Disbursement{
		CampaignID: testCampaignID, RequestIndex: 0, Recipient: "0xr", Value: decimal.NewFromInt(5),
	})
	if !errors.Is(err, domain.ErrAlreadyFinalized) {
		t.Fatalf("SaveDisbursement error = %v, want ErrAlreadyFinalized", err)
	}
	if stub.executed(sqlinline.QCreditAccount) {
		t.Fatalf("recipient must not be credited when the request is already complete")
	}
	if !stub.rolled || stub.committed {
		t.Fatalf("transaction must roll back")
	}
}

func TestSaveDisbursementInsufficientFunds(t *testing.T) {
	stub := &stubExecutor{
		tags: map[string]string{sqlinline.QDebitCampaign: "UPDATE 0"},
		rows: lockedCampaign(),
	}
	repo := NewCampaignRepository(stub, nil)

	err := repo.SaveDisbursement(context.Background(), domain.Disbursement{
		CampaignID: testCampaignID, RequestIndex: 0, Recipient: "0xr", Value: decimal.NewFromInt(5),
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("SaveDisbursement error = %v, want ErrInsufficientFunds", err)
	}
	if !stub.rolled {
		t.Fatalf("transaction must roll back")
	}
}

func TestSaveDisbursementRechecksApprovals(t *testing.T) {
	tests := []struct {
		name         string
		complete     bool
		approvals    int
		contributors int
		policy       domain.ApprovalPolicy
		want         error
	}{
		{name: "contributors joined since load", approvals: 1, contributors: 3, want: domain.ErrInsufficientApprovals},
		{name: "tie fails strict majority", approvals: 2, contributors: 4, want: domain.ErrInsufficientApprovals},
		{name: "quorum not met", approvals: 2, contributors: 3, policy: domain.Quorum{Num: 2, Den: 3}, want: domain.ErrInsufficientApprovals},
		{name: "completed by another writer", complete: true, approvals: 3, contributors: 3, want: domain.ErrAlreadyFinalized},
		{name: "majority holds", approvals: 2, contributors: 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubExecutor{rows: lockedCampaignWithTally(tc.complete, tc.approvals, tc.contributors)}
			repo := NewCampaignRepository(stub, nil)

			err := repo.SaveDisbursement(context.Background(), domain.Disbursement{
				CampaignID: testCampaignID, RequestIndex: 0, Recipient: "0xr", Value: decimal.NewFromInt(5), Policy: tc.policy,
			})
			if tc.want == nil {
				if err != nil || !stub.committed {
					t.Fatalf("SaveDisbursement error = %v, committed = %v", err, stub.committed)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("SaveDisbursement error = %v, want %v", err, tc.want)
			}
			if stub.executed(sqlinline.QCompleteRequest) || stub.executed(sqlinline.QCreditAccount) {
				t.Fatalf("request must not be completed when the tally check fails")
			}
			if !stub.rolled {
				t.Fatalf("transaction must roll back")
			}
		})
	}
}

func TestSaveDisbursementCreditsRecipient(t *testing.T) {
	stub := &stubExecutor{rows: lockedCampaign()}
	repo := NewCampaignRepository(stub, nil)

	err := repo.SaveDisbursement(context.Background(), domain.Disbursement{
		CampaignID: testCampaignID, RequestIndex: 2, Recipient: "0xr", Value: decimal.RequireFromString("500000000000000000"),
	})
	if err != nil {
		t.Fatalf("SaveDisbursement error: %v", err)
	}
	if !stub.committed {
		t.Fatalf("transaction must commit")
	}
	for _, call := range stub.execs {
		if call.query != sqlinline.QCreditAccount {
			continue
		}
		if call.args[0] != "0xr" || call.args[1] != "500000000000000000" {
			t.Fatalf("credit args = %v", call.args)
		}
		return
	}
	t.Fatalf("recipient was not credited")
}

func TestSaveApprovalDuplicate(t *testing.T) {
	stub := &stubExecutor{
		tags: map[string]string{sqlinline.QInsertApproval: "INSERT 0 0"},
		rows: lockedCampaign(),
	}
	repo := NewCampaignRepository(stub, nil)

	err := repo.SaveApproval(context.Background(), domain.Approval{CampaignID: testCampaignID, RequestIndex: 0, Approver: "0xa"})
	if !errors.Is(err, domain.ErrAlreadyApproved) {
		t.Fatalf("SaveApproval error = %v, want ErrAlreadyApproved", err)
	}
	if stub.executed(sqlinline.QIncrementApprovalCount) {
		t.Fatalf("approval count must not change on a duplicate approval")
	}
}

func TestSaveContributionCountsFirstTimeContributors(t *testing.T) {
	tests := []struct {
		name      string
		insertTag string
		wantCount int
		wantTotal bool
	}{
		{name: "first contribution", insertTag: "INSERT 0 1", wantCount: 1},
		{name: "repeat contribution", insertTag: "INSERT 0 0", wantCount: 0, wantTotal: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubExecutor{
				tags: map[string]string{sqlinline.QInsertContributor: tc.insertTag},
				rows: lockedCampaign(),
			}
			repo := NewCampaignRepository(stub, nil)
			err := repo.SaveContribution(context.Background(), domain.Contribution{
				CampaignID: testCampaignID, Contributor: "0xa", Amount: decimal.NewFromInt(10),
			})
			if err != nil {
				t.Fatalf("SaveContribution error: %v", err)
			}
			if got := stub.executed(sqlinline.QAddContributorTotal); got != tc.wantTotal {
				t.Fatalf("contributor total updated = %v, want %v", got, tc.wantTotal)
			}
			for _, call := range stub.execs {
				if call.query == sqlinline.QCreditCampaign {
					if call.args[2] != tc.wantCount {
						t.Fatalf("contributors_count increment = %v, want %d", call.args[2], tc.wantCount)
					}
					return
				}
			}
			t.Fatalf("campaign was not credited")
		})
	}
}

func TestWritesToUnknownCampaignAreNotFound(t *testing.T) {
	stub := &stubExecutor{}
	repo := NewCampaignRepository(stub, nil)

	err := repo.SaveApproval(context.Background(), domain.Approval{CampaignID: testCampaignID})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("SaveApproval error = %v, want ErrNotFound", err)
	}
	if len(stub.execs) != 0 {
		t.Fatalf("no statements may run for an unknown campaign, got %d", len(stub.execs))
	}
}

func TestGetCampaignRejectsMalformedID(t *testing.T) {
	repo := NewCampaignRepository(&stubExecutor{}, nil)
	if _, err := repo.GetCampaign(context.Background(), "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetCampaign error = %v, want ErrNotFound", err)
	}
}

func TestBalanceDefaultsToZero(t *testing.T) {
	repo := NewCampaignRepository(&stubExecutor{}, nil)
	balance, err := repo.Balance(context.Background(), "0xnobody")
	if err != nil {
		t.Fatalf("Balance error: %v", err)
	}
	if !balance.IsZero() {
		t.Fatalf("Balance = %s, want 0", balance)
	}
}

func TestCloseRunsCloser(t *testing.T) {
	closed := false
	repo := NewCampaignRepository(&stubExecutor{}, func() { closed = true })
	if err := repo.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if !closed {
		t.Fatalf("Close did not release the pool")
	}
}
