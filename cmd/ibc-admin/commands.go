package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"india-blood-connect/internal/domain"
	"india-blood-connect/internal/matcher"
	"india-blood-connect/internal/notify"
	"india-blood-connect/internal/repository"
	"india-blood-connect/internal/service"
)

func newRootCmd(open opener) *cobra.Command {
	var e *env

	root := &cobra.Command{
		Use:           "ibc-admin",
		Short:         "Administer the India Blood Connect directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || (cmd.HasParent() && cmd.Parent().Name() == "completion") {
				return nil
			}
			var err error
			e, err = open(cmd.Context())
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if e != nil && e.close != nil {
				e.close()
			}
		},
	}
	get := func() *env { return e }

	root.AddCommand(
		newMigrateCmd(get),
		newSeedCmd(get),
		newListCmd("donors", "List donors", func(ctx context.Context, r *repository.Repos) (any, error) {
			return r.Donors.ListDonors(ctx)
		}, get),
		newBanksCmd(get),
		newListCmd("camps", "List donation camps", func(ctx context.Context, r *repository.Repos) (any, error) {
			return r.Camps.ListCamps(ctx)
		}, get),
		newListCmd("requests", "List open blood requests", func(ctx context.Context, r *repository.Repos) (any, error) {
			return r.Requests.ListRequests(ctx)
		}, get),
		newAlertsCmd(get),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMigrateCmd(get func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := get()
			if e.db == nil {
				return errors.New("migrate needs STORE_BACKEND=postgres and a reachable database")
			}
			if err := repository.Migrate(cmd.Context(), e.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}

func newSeedCmd(get func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the built-in donors, banks and camps (idempotent)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := get()
			res, err := repository.Seed(cmd.Context(), e.repos, e.logger)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

type lister func(ctx context.Context, r *repository.Repos) (any, error)

// newListCmd builds "<name> list".
func newListCmd(name, short string, list lister, get func() *env) *cobra.Command {
	parent := &cobra.Command{Use: name, Short: short}
	parent.AddCommand(listSubCmd(short, list, get))
	return parent
}

func listSubCmd(short string, list lister, get func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: short + " as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := list(cmd.Context(), get().repos)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
}

func newBanksCmd(get func() *env) *cobra.Command {
	banks := &cobra.Command{Use: "banks", Short: "Blood bank directory"}
	banks.AddCommand(listSubCmd("List blood banks", func(ctx context.Context, r *repository.Repos) (any, error) {
		return r.Banks.ListBanks(ctx)
	}, get))

	var out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the stock of every bank to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := get()
			svc := service.NewBankService(e.repos.Banks, notify.Nop{}, e.logger)
			if out == "" {
				out = fmt.Sprintf("blood-stock-%s.xlsx", time.Now().Format("20060102"))
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if err := svc.ExportStock(cmd.Context(), f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	export.Flags().StringVarP(&out, "out", "o", "", "output file (default blood-stock-<date>.xlsx)")
	banks.AddCommand(export)
	return banks
}

func newAlertsCmd(get func() *env) *cobra.Command {
	alerts := &cobra.Command{Use: "alerts", Short: "Live request alerts"}

	var loc domain.Location
	preview := &cobra.Command{
		Use:   "preview",
		Short: "Show the requests a viewer in the given location would be alerted to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			requests, err := get().repos.Requests.ListRequests(cmd.Context())
			if err != nil {
				return err
			}
			snap := matcher.Snapshot{
				Requests:    matcher.Match(requests, loc),
				GeneratedAt: time.Now().UTC(),
			}
			if snap.Empty() {
				fmt.Fprintln(cmd.ErrOrStderr(), "no matching requests")
			} else {
				fmt.Fprintln(cmd.ErrOrStderr(), snap.Headline())
			}
			return printJSON(cmd.OutOrStdout(), snap)
		},
	}
	preview.Flags().StringVar(&loc.State, "state", "", "viewer state")
	preview.Flags().StringVar(&loc.District, "district", "", "viewer district")
	alerts.AddCommand(preview)
	return alerts
}
