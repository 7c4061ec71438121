package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/bokai/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "bokd",
		Short:         "BOK-AI grounded answering service",
		Long:          "bokd serves grounded answers from per-tenant knowledge and manages tenants and their knowledge bases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())
	rootCmd.AddCommand(admin.TenantCmd())
	rootCmd.AddCommand(admin.KnowledgeCmd())
	rootCmd.AddCommand(admin.AskCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
