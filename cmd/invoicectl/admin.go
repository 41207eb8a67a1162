package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"invoicegen/internal/app"
	"invoicegen/internal/domain/auth"
	"invoicegen/internal/infrastructure/storage/postgres/auth_repo"
)

func migrateCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := env.open(ctx); err != nil {
				return err
			}
			defer env.close()

			applied, err := app.Migrate(ctx, env.txManager)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
			}
			return nil
		},
	}
}

func createUserCmd(env *cliEnv) *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:     "create-user",
		Short:   "Create a dashboard account",
		Example: `  invoicectl create-user --email owner@example.com --password 's3cret-pass'`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := env.openServices(ctx); err != nil {
				return err
			}
			defer env.close()

			user, err := env.services.Auth.Register(ctx, auth.RegisterRequest{
				Email:    email,
				Password: password,
				Name:     name,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&password, "password", "", "account password (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func issueKeyCmd(env *cliEnv) *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "issue-key",
		Short: "Issue an API key for an existing account",
		Long: `Issue an API key for an existing account.

The plaintext key is printed once and cannot be recovered later.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := env.openServices(ctx); err != nil {
				return err
			}
			defer env.close()

			user, err := auth_repo.NewUserRepo(env.txManager).GetByEmail(ctx, auth.NormalizeEmail(email))
			if err != nil {
				return fmt.Errorf("find user %s: %w", email, err)
			}

			issued, err := env.services.APIKeys.Create(ctx, user.ID, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", issued.Plaintext)
			fmt.Fprintf(cmd.ErrOrStderr(), "issued key %s (%s) for %s\n", issued.ID, issued.KeyPrefix, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "owner account email (required)")
	cmd.Flags().StringVar(&name, "name", "cli", "key name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
