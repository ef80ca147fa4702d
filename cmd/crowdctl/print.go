package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"crowdfund/internal/domain"
)

func printCampaign(out io.Writer, c *domain.Campaign, policy domain.ApprovalPolicy) {
	fmt.Fprintf(out, "campaign:             %s\n", c.ID)
	fmt.Fprintf(out, "manager:              %s\n", c.Manager)
	fmt.Fprintf(out, "minimum contribution: %s\n", c.MinimumContribution)
	fmt.Fprintf(out, "balance:              %s\n", c.Balance)
	fmt.Fprintf(out, "contributors:         %d\n", c.ContributorsCount())
	fmt.Fprintf(out, "created:              %s\n", c.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "requests:             %d\n", len(c.Requests))
	if len(c.Requests) == 0 {
		return
	}

	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tVALUE\tRECIPIENT\tAPPROVALS\tSTATUS\tDESCRIPTION")
	for _, r := range c.Requests {
		status := string(r.Status())
		if !r.Complete && policy != nil && policy.Approved(r.ApprovalCount(), c.ContributorsCount()) {
			status += " (ready)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d/%d\t%s\t%s\n",
			r.Index, r.Value, r.Recipient, r.ApprovalCount(), c.ContributorsCount(), status, r.Description)
	}
	_ = tw.Flush()
}
