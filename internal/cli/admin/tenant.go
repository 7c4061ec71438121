package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/bokai/internal/service"
)

func TenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	cmd.AddCommand(TenantCreateCmd())

	return cmd
}

func TenantCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Onboard a new tenant",
		Long:  "Create a tenant with its owner, default bot configuration and seed knowledge",
		Args:  cobra.ExactArgs(1),
		RunE:  runTenantCreate,
	}

	cmd.Flags().String("slug", "", "Tenant slug (derived from the name when empty)")
	cmd.Flags().String("domain", "", "Shop domain")
	cmd.Flags().String("owner", "", "Owner user id")
	addOutputFlag(cmd.Flags())
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

func runTenantCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	slug, _ := cmd.Flags().GetString("slug")
	domainName, _ := cmd.Flags().GetString("domain")
	owner, _ := cmd.Flags().GetString("owner")

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.onboarding.CreateTenant(ctx, service.CreateTenantInput{
		Name:    args[0],
		Slug:    slug,
		Domain:  domainName,
		OwnerID: owner,
	})
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	out := cmd.OutOrStdout()
	if wantsJSON(cmd) {
		data := map[string]any{
			"id":               res.Tenant.ID,
			"name":             res.Tenant.Name,
			"slug":             res.Tenant.Slug,
			"owner_id":         res.Tenant.OwnerID,
			"seeded_documents": len(res.Documents),
			"created_at":       res.Tenant.CreatedAt,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Fprintln(out, string(jsonBytes))
		return nil
	}

	fmt.Fprintf(out, "Tenant created: %s (%s, slug %s)\n", res.Tenant.Name, res.Tenant.ID, res.Tenant.Slug)
	fmt.Fprintf(out, "Seed documents: %d\n", len(res.Documents))
	return nil
}
