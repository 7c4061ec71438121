package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/inbound"
)

// PlatformCLI marks conversations asked from the command line.
const PlatformCLI = "cli"

func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a tenant's assistant",
		Long:  "Run a question through the pipeline as an inbound message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}

	cmd.Flags().StringP("tenant", "t", "", "Tenant id")
	addOutputFlag(cmd.Flags())
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	tenantID, _ := cmd.Flags().GetString("tenant")

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

	source := inbound.NewChannelSource(1)
	sink := inbound.NewChannelSink(1)
	dispatcher := inbound.NewDispatcher(a.pipeline, sink, a.conversations, a.feedback, logger)

	if err := source.Push(ctx, domain.InboundMessage{
		TenantID: tenantID,
		ThreadID: uuid.NewString(),
		Message:  strings.Join(args, " "),
		Platform: PlatformCLI,
	}); err != nil {
		return err
	}
	source.Close()
	if err := source.Run(ctx, dispatcher.Handle); err != nil {
		return err
	}
	if err := a.conversations.Flush(ctx); err != nil {
		logger.Warn("failed to record conversation", zap.Error(err))
	}

	var reply domain.OutboundReply
	select {
	case reply = <-sink.Replies:
	default:
		return fmt.Errorf("no answer for tenant %q", tenantID)
	}

	out := cmd.OutOrStdout()
	if wantsJSON(cmd) {
		jsonBytes, _ := json.MarshalIndent(reply, "", "  ")
		fmt.Fprintln(out, string(jsonBytes))
		return nil
	}
	fmt.Fprintln(out, reply.Message)
	fmt.Fprintf(out, "\nconfidence: %.2f  needs human: %t\n", reply.Confidence, reply.NeedsHuman)
	return nil
}
