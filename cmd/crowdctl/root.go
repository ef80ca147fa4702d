package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"crowdfund/internal/adapter/repo"
	"crowdfund/internal/crowdfund"
	"crowdfund/internal/domain"
	"crowdfund/internal/infra"
	"crowdfund/internal/middleware"
)

type cli struct {
	out        io.Writer
	loadConfig func() (*infra.Config, error)
	now        func() time.Time

	cfg *infra.Config
}

func newCLI(out io.Writer) *cli {
	return &cli{out: out, loadConfig: infra.LoadConfig, now: time.Now}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:          "crowdctl",
		Short:        "Inspect campaigns and issue API tokens",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}
	root.SetOut(c.out)
	root.AddCommand(c.tokenCmd(), c.campaignsCmd(), c.showCmd(), c.balanceCmd())
	return root
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		sub string
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed JWT for an identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := domain.ParseIdentity(sub)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}
			tok, err := middleware.SignJWT(c.cfg.JWTSecret, c.cfg.JWTIssuer, id.String(), ttl, c.now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.out, tok)
			return err
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "identity to place in the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}

func (c *cli) campaignsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "campaigns",
		Short: "List deployed campaign ids in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), func(ctx context.Context, svc *crowdfund.Service) error {
				ids, err := svc.DeployedCampaigns(ctx)
				if err != nil {
					return err
				}
				for _, id := range ids {
					if _, err := fmt.Fprintln(c.out, id); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <campaign-id>",
		Short: "Print a campaign summary and its spending requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(ctx context.Context, svc *crowdfund.Service) error {
				camp, err := svc.Campaign(ctx, args[0])
				if err != nil {
					return err
				}
				printCampaign(c.out, camp, svc.Policy())
				return nil
			})
		},
	}
}

func (c *cli) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <identity>",
		Short: "Print the funds credited to an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseIdentity(args[0])
			if err != nil {
				return err
			}
			return c.withService(cmd.Context(), func(ctx context.Context, svc *crowdfund.Service) error {
				balance, err := svc.Balance(ctx, id)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(c.out, balance.String())
				return err
			})
		},
	}
}

// withService opens the configured store for the duration of fn.
func (c *cli) withService(ctx context.Context, fn func(context.Context, *crowdfund.Service) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	level := c.cfg.LogLevel
	if level == "" {
		level = "warn"
	}
	logger := infra.NewLogger("cli", level).With().Str("cmd", "crowdctl").Logger()
	store, err := repo.Open(ctx, c.cfg, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	policy, err := domain.ParseApprovalPolicy(c.cfg.ApprovalQuorum)
	if err != nil {
		return err
	}
	return fn(ctx, crowdfund.NewService(store, crowdfund.Options{Policy: policy, Logger: &logger}))
}
