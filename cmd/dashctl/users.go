package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"billing-dashboard/core"
)

func newSeedCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load users, customers and invoices from a YAML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := core.Load()
			if check {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				doc, err := core.ParseSeed(data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok: users=%d customers=%d invoices=%d\n", len(doc.Users), len(doc.Customers), len(doc.Invoices))
				return nil
			}

			db, err := core.Connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			stores := core.SeedStores{
				Users:     core.NewPgUserRepository(db),
				Customers: core.NewPgCustomerRepository(db),
				Invoices:  core.NewPgInvoiceRepository(db),
			}
			sum, err := core.LoadSeedFile(cmd.Context(), args[0], stores, cfg.BcryptCost)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted users=%d customers=%d invoices=%d\n", sum.Users, sum.Customers, sum.Invoices)
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Only parse and validate the file")
	return cmd
}

func newCreateUserCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create-user <email>",
		Short: "Create a dashboard user; the password is read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := core.Load()
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			hash, err := core.HashPassword(password, cfg.BcryptCost)
			if err != nil {
				return err
			}

			db, err := core.Connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close()

			email := strings.ToLower(strings.TrimSpace(args[0]))
			id, err := core.NewPgUserRepository(db).Create(cmd.Context(), name, email, hash)
			if errors.Is(err, core.ErrUserExists) {
				return fmt.Errorf("user %s already exists", email)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", email, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Dashboard User", "Display name")
	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash of the password read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			hash, err := core.HashPassword(password, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", core.Load().BcryptCost, "bcrypt cost")
	return cmd
}

func newDecideCmd() *cobra.Command {
	var signedIn bool

	cmd := &cobra.Command{
		Use:   "decide <path>",
		Short: "Show what the authorization policy does with a request",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			d := core.DefaultAuthorizationPolicy().Decide(signedIn, args[0])
			switch {
			case d.Allow:
				fmt.Fprintln(cmd.OutOrStdout(), "allow")
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "redirect %s\n", d.RedirectTarget)
			}
		},
	}

	cmd.Flags().BoolVar(&signedIn, "signed-in", false, "Evaluate as an authenticated user")
	return cmd
}

func readPassword(cmd *cobra.Command) (string, error) {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("password expected on stdin")
	}
	password := strings.TrimRight(line, "\r\n")
	if len(password) < 6 {
		return "", errors.New("password must be at least 6 characters")
	}
	return password, nil
}
