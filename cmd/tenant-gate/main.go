package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tenantgate/tenant-gate/internal/config"
	"github.com/tenantgate/tenant-gate/internal/identity"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tenant-gate",
		Short: "Tenant Gate - authorization gateway tooling",
		Long: `Tenant Gate is the authorization and rate-limiting gateway that
fronts the platform's procedure calls.

Run 'tenant-gate-server' to start the gateway itself; this CLI carries
operator tooling.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")

	rootCmd.AddCommand(
		checkTokenCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// checkTokenCmd verifies a bearer token against the configured verifier.
// Useful when debugging why a credential resolves to anonymous.
func checkTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-token <token>",
		Short: "Verify a bearer token against the configured verifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			verifier, err := identity.NewVerifier(cfg.Auth)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			subject, err := verifier.Verify(ctx, args[0])
			if err != nil {
				fmt.Printf("token invalid: %v\n", err)
				return nil
			}

			fmt.Printf("token valid, subject: %s\n", subject)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tenant-gate %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}
