package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ApprovalPolicy decides whether a request with the given number of
// approvals may be finalized in a campaign with the given number of
// contributors.
type ApprovalPolicy interface {
	Approved(approvals, contributors int) bool
}

// StrictMajority requires more than half of the contributors:
// approvals*2 > contributors.
type StrictMajority struct{}

func (StrictMajority) Approved(approvals, contributors int) bool {
	return approvals*2 > contributors
}

func (StrictMajority) String() string { return "1/2" }

// Quorum requires approvals to exceed Num/Den of the contributors:
// approvals*Den > contributors*Num. Quorum{1, 2} equals StrictMajority.
type Quorum struct {
	Num int
	Den int
}

func (q Quorum) Approved(approvals, contributors int) bool {
	return approvals*q.Den > contributors*q.Num
}

func (q Quorum) String() string { return fmt.Sprintf("%d/%d", q.Num, q.Den) }

// ParseApprovalPolicy parses a fraction such as "1/2" or "2/3". The
// fraction must lie in [0, 1). An empty string yields StrictMajority.
func ParseApprovalPolicy(raw string) (ApprovalPolicy, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "1/2" {
		return StrictMajority{}, nil
	}
	numRaw, denRaw, ok := strings.Cut(raw, "/")
	if !ok {
		return nil, fmt.Errorf("approval quorum %q: want a fraction like 2/3", raw)
	}
	num, err := strconv.Atoi(strings.TrimSpace(numRaw))
	if err != nil {
		return nil, fmt.Errorf("approval quorum %q: numerator: %w", raw, err)
	}
	den, err := strconv.Atoi(strings.TrimSpace(denRaw))
	if err != nil {
		return nil, fmt.Errorf("approval quorum %q: denominator: %w", raw, err)
	}
	if den <= 0 || num < 0 || num >= den {
		return nil, fmt.Errorf("approval quorum %q: want 0 <= numerator < denominator", raw)
	}
	return Quorum{Num: num, Den: den}, nil
}
