package domain

import "testing"

func TestStrictMajority(t *testing.T) {
	tests := []struct {
		approvals, contributors int
		want                    bool
	}{
		{0, 0, false},
		{1, 1, true},
		{1, 2, false},
		{2, 3, true},
		{2, 4, false},
		{3, 4, true},
	}
	for _, tc := range tests {
		if got := (StrictMajority{}).Approved(tc.approvals, tc.contributors); got != tc.want {
			t.Fatalf("StrictMajority.Approved(%d, %d) = %v, want %v", tc.approvals, tc.contributors, got, tc.want)
		}
	}
}

func TestParseApprovalPolicy(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "", want: "1/2"},
		{raw: "1/2", want: "1/2"},
		{raw: " 2/3 ", want: "2/3"},
		{raw: "0/1", want: "0/1"},
		{raw: "1/1", wantErr: true},
		{raw: "3/2", wantErr: true},
		{raw: "1/0", wantErr: true},
		{raw: "-1/2", wantErr: true},
		{raw: "half", wantErr: true},
		{raw: "a/b", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			policy, err := ParseApprovalPolicy(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseApprovalPolicy(%q) expected error", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseApprovalPolicy(%q) unexpected error: %v", tc.raw, err)
			}
			s, ok := policy.(interface{ String() string })
			if !ok || s.String() != tc.want {
				t.Fatalf("ParseApprovalPolicy(%q) = %v, want %s", tc.raw, policy, tc.want)
			}
		})
	}
}

func TestQuorumTwoThirds(t *testing.T) {
	q := Quorum{Num: 2, Den: 3}
	if q.Approved(2, 3) {
		t.Fatalf("2 of 3 must not exceed two thirds")
	}
	if !q.Approved(3, 4) {
		t.Fatalf("3 of 4 must exceed two thirds")
	}
}

func TestParseIdentity(t *testing.T) {
	id, err := ParseIdentity("  0xAbC ")
	if err != nil {
		t.Fatalf("ParseIdentity unexpected error: %v", err)
	}
	if id != "0xabc" {
		t.Fatalf("ParseIdentity = %q, want 0xabc", id)
	}
	if _, err := ParseIdentity("   "); err == nil {
		t.Fatalf("ParseIdentity expected error for blank input")
	}
}

func TestParseAmount(t *testing.T) {
	if _, err := ParseAmount("amount", "1000000000000000000"); err != nil {
		t.Fatalf("ParseAmount unexpected error: %v", err)
	}
	for _, raw := range []string{"-1", "0.5", "abc", ""} {
		if _, err := ParseAmount("amount", raw); err == nil {
			t.Fatalf("ParseAmount(%q) expected error", raw)
		}
	}
}
