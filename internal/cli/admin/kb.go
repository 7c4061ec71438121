package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/bokai/internal/parser"
	"github.com/cloo-solutions/bokai/internal/service"
)

func KnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage tenant knowledge",
	}

	cmd.PersistentFlags().StringP("tenant", "t", "", "Tenant id")
	_ = cmd.MarkPersistentFlagRequired("tenant")

	cmd.AddCommand(KnowledgeAddCmd())
	cmd.AddCommand(KnowledgeListCmd())
	cmd.AddCommand(KnowledgeReindexCmd())

	return cmd
}

func KnowledgeAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a knowledge document",
		Long:  "Add a document from --content or from a pdf, docx, xlsx, md or txt --file",
		RunE:  runKnowledgeAdd,
	}

	cmd.Flags().String("title", "", "Document title (defaults to the file name)")
	cmd.Flags().String("content", "", "Document text")
	cmd.Flags().String("file", "", "File to ingest")
	cmd.Flags().String("category", "", "Category")
	cmd.Flags().StringSlice("tags", nil, "Comma separated tags")
	cmd.Flags().Bool("wait", false, "Index before returning")
	cmd.MarkFlagsMutuallyExclusive("content", "file")
	cmd.MarkFlagsOneRequired("content", "file")

	return cmd
}

func knowledgeInput(cmd *cobra.Command) (service.AddDocumentInput, error) {
	tenantID, _ := cmd.Flags().GetString("tenant")
	title, _ := cmd.Flags().GetString("title")
	content, _ := cmd.Flags().GetString("content")
	file, _ := cmd.Flags().GetString("file")
	category, _ := cmd.Flags().GetString("category")
	tags, _ := cmd.Flags().GetStringSlice("tags")
	wait, _ := cmd.Flags().GetBool("wait")

	in := service.AddDocumentInput{
		TenantID: tenantID,
		Title:    title,
		Content:  content,
		Category: category,
		Tags:     tags,
		Wait:     wait,
	}
	if file == "" {
		if strings.TrimSpace(title) == "" {
			return in, errors.New("--title is required with --content")
		}
		return in, nil
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return in, fmt.Errorf("failed to read %s: %w", file, err)
	}
	parsed, err := parser.Parse(filepath.Base(file), raw)
	if err != nil {
		return in, err
	}
	if in.Title == "" {
		in.Title = parsed.Title
	}
	in.Content = parsed.Text
	in.FileName = filepath.Base(file)
	in.ContentType = parsed.ContentType
	in.Raw = raw
	in.Metadata = map[string]any{"source_file": in.FileName, "format": string(parsed.Format)}
	return in, nil
}

func runKnowledgeAdd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	in, err := knowledgeInput(cmd)
	if err != nil {
		return err
	}

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

	res, err := a.knowledge.AddDocument(ctx, in)
	if res == nil {
		return fmt.Errorf("failed to add document: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Document added: %s (%s)\n", res.Document.Title, res.Document.ID)
	if res.Index != nil {
		fmt.Fprintf(out, "Indexed chunks: %d\n", res.Index.Chunks)
	} else if res.Job != nil {
		fmt.Fprintf(out, "Index job: %s (%s)\n", res.Job.ID, res.Job.Status)
	}
	if err != nil {
		return fmt.Errorf("document stored but indexing failed: %w", err)
	}
	return nil
}

func KnowledgeListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge documents",
		RunE:  runKnowledgeList,
	}

	cmd.Flags().Int("limit", 20, "Maximum number of documents")
	cmd.Flags().String("cursor", "", "Cursor from a previous page")
	addOutputFlag(cmd.Flags())

	return cmd
}

func runKnowledgeList(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	tenantID, _ := cmd.Flags().GetString("tenant")
	limit, _ := cmd.Flags().GetInt("limit")
	cursor, _ := cmd.Flags().GetString("cursor")

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

	page, err := a.knowledge.ListDocuments(ctx, tenantID, cursor, limit)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	out := cmd.OutOrStdout()
	if wantsJSON(cmd) {
		items := make([]map[string]any, 0, len(page.Items))
		for _, d := range page.Items {
			items = append(items, map[string]any{
				"id":         d.ID,
				"title":      d.Title,
				"category":   d.Category,
				"created_at": d.CreatedAt,
			})
		}
		jsonBytes, _ := json.MarshalIndent(map[string]any{
			"items":       items,
			"next_cursor": page.NextCursor,
			"has_more":    page.HasMore,
		}, "", "  ")
		fmt.Fprintln(out, string(jsonBytes))
		return nil
	}

	for _, d := range page.Items {
		fmt.Fprintf(out, "%s\t%s\t%s\n", d.ID, d.CreatedAt.Format("2006-01-02"), d.Title)
	}
	if page.HasMore {
		fmt.Fprintf(out, "next cursor: %s\n", page.NextCursor)
	}
	return nil
}

func KnowledgeReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex <document-id>",
		Short: "Re-index a knowledge document",
		Args:  cobra.ExactArgs(1),
		RunE:  runKnowledgeReindex,
	}

	cmd.Flags().Bool("wait", false, "Index before returning")

	return cmd
}

func runKnowledgeReindex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	tenantID, _ := cmd.Flags().GetString("tenant")
	wait, _ := cmd.Flags().GetBool("wait")

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

	job, err := a.knowledge.Reindex(ctx, tenantID, args[0], wait)
	if err != nil {
		return fmt.Errorf("failed to reindex: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Index job: %s (%s)\n", job.ID, job.Status)
	return nil
}
