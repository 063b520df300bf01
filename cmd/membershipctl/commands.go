package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"membership-billing/internal/config"
	"membership-billing/internal/infra/adapters/payment"
	"membership-billing/internal/infra/api"
	pg "membership-billing/internal/infra/db/postgres"
	"membership-billing/internal/infra/logging"
	"membership-billing/internal/usecase"
)

type rootOptions struct {
	configPath string
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "membershipctl",
		Short:         "Membership billing operator commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to YAML config file")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "overall command timeout")

	root.AddCommand(
		newPackagesCmd(opts),
		newResolveCmd(opts),
		newComplainCmd(opts),
		newTokenCmd(opts),
	)
	return root
}

// store is the slice of the service the database commands need.
type store struct {
	pool       *pgxpool.Pool
	membership usecase.MembershipUseCase
	complaints usecase.ComplaintUseCase
}

func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*store, error) {
	pool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	records := pg.NewPostgresPaymentRecordRepo(pool)
	return &store{
		pool: pool,
		membership: usecase.NewMembershipUseCase(
			pg.NewPostgresPackageRepo(pool), records, pg.NewPostgresEntitlementRepo(pool), logger),
		complaints: usecase.NewComplaintUseCase(records, nil, logger),
	}, nil
}

func (s *store) Close() { s.pool.Close() }

func loadConfig(opts *rootOptions) (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.LoadConfig(opts.configPath, false)
	if err != nil {
		return nil, nil, err
	}
	// keep stdout for command output
	cfg.Log.Format = "console"
	if cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}
	return cfg, logging.New(cfg.Log, false), nil
}

func withStore(opts *rootOptions, cmd *cobra.Command, fn func(ctx context.Context, s *store) error) error {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	s, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func newPackagesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "packages",
		Short: "List the package catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, s *store) error {
				pkgs, err := s.membership.Packages(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tPRICE\tLIFETIME")
				for _, p := range pkgs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", p.ID, p.Name, payment.FormatMinorUnits(p.Price), p.Lifetime)
				}
				return w.Flush()
			})
		},
	}
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show a user's baseline tier and the offer for every package",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, s *store) error {
				snap, err := s.membership.Snapshot(ctx, userID)
				if err != nil {
					return err
				}
				printSnapshot(cmd.OutOrStdout(), snap.UserID, snap.Baseline.PackageID, snap.Baseline.Price, snap.PendingTiers)
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "PACKAGE\tCLASS\tPAYABLE\tSELECTABLE")
				for _, o := range snap.Offers {
					fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", o.PackageID, o.Classification, payment.FormatMinorUnits(o.Payable), o.Selectable)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printSnapshot(w io.Writer, userID, baseline string, price int64, pending []string) {
	if baseline == "" {
		baseline = "(none)"
	}
	fmt.Fprintf(w, "user:     %s\n", userID)
	fmt.Fprintf(w, "baseline: %s (%s)\n", baseline, payment.FormatMinorUnits(price))
	fmt.Fprintf(w, "pending:  %v\n\n", pending)
}

func newComplainCmd(opts *rootOptions) *cobra.Command {
	var userID, tier, message string
	cmd := &cobra.Command{
		Use:   "complain",
		Short: "Attach a complaint to the user's most relevant payment for a tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, s *store) error {
				rec, err := s.complaints.Attach(ctx, userID, tier, message)
				if err != nil {
					return fmt.Errorf("attach complaint: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "attached to %s (status=%s, complaints=%d)\n", rec.ID, rec.Status, len(rec.Complaints))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&tier, "tier", "", "package id the complaint is about")
	cmd.Flags().StringVar(&message, "message", "", "complaint text")
	for _, f := range []string{"user", "tier", "message"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	token := &cobra.Command{
		Use:   "token",
		Short: "Bearer token helpers for local testing",
	}
	var userID string
	var ttl time.Duration
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Sign a user token with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			tok, err := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Mint(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	mint.Flags().StringVar(&userID, "user", "", "user id (token subject)")
	mint.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = mint.MarkFlagRequired("user")
	token.AddCommand(mint)
	return token
}
