package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/curador/internal/config"
	"github.com/kalambet/curador/internal/pipeline"
	"github.com/kalambet/curador/internal/sheet"
	"github.com/kalambet/curador/internal/storage"
)

// --- curate / categorize ---

var curateCmd = &cobra.Command{
	Use:   "curate",
	Short: "Curate a single document through the running server",
	Long: `Curate a single document and print the generated metadata as JSON.

Examples:
  curador curate --file artigo.pdf --headers "TÍTULO,RESUMO,APROVAÇÃO CURADOR (marcar),FEEDBACK DO CURADOR (escrever)"
  curador curate --file notas.txt --headers "TÍTULO" --category solos`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		headersStr, _ := cmd.Flags().GetString("headers")
		category, _ := cmd.Flags().GetString("category")

		if file == "" || headersStr == "" {
			return fmt.Errorf("--file and --headers are required")
		}

		req, err := fileRequest(file)
		if err != nil {
			return err
		}
		req.Headers = splitList(headersStr)
		req.Category = category

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		values, err := client.Curate(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, values)
	},
}

var categorizeCmd = &cobra.Command{
	Use:   "categorize",
	Short: "Classify a document into a category",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		req, err := fileRequest(file)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		res, err := client.Categorize(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Println(res.Category)
		return nil
	},
}

func init() {
	curateCmd.Flags().String("file", "", "document to curate (.pdf or text)")
	curateCmd.Flags().String("headers", "", "comma-separated output columns")
	curateCmd.Flags().String("category", "", "domain tag selecting the rule set")

	categorizeCmd.Flags().String("file", "", "document to classify (.pdf or text)")
}

// fileRequest reads path into a request, choosing the content type by
// extension.
func fileRequest(path string) (pipeline.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("reading file: %w", err)
	}
	return pipeline.Request{
		EncodedContent: base64.StdEncoding.EncodeToString(data),
		ContentType:    contentType(path),
	}, nil
}

func contentType(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "pdf"
	}
	return "text"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// --- sheet ---

var sheetCmd = &cobra.Command{
	Use:   "sheet <workbook.xlsx>",
	Short: "Curate every pending row of a spreadsheet",
	Long: `Curate the pending rows of a curation workbook through the running server.

A row is pending when neither its approval nor its rejection column is
checked and it names a document. Results are written back to the workbook
after each row.

Examples:
  curador sheet planilha.xlsx --docs ./documentos
  curador sheet planilha.xlsx --docs ./documentos --row 12
  curador sheet planilha.xlsx --docs ./documentos --archive --fill-category`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sheetName, _ := cmd.Flags().GetString("sheet")
		docs, _ := cmd.Flags().GetString("docs")
		row, _ := cmd.Flags().GetInt("row")
		archive, _ := cmd.Flags().GetBool("archive")
		fill, _ := cmd.Flags().GetBool("fill-category")

		if docs == "" {
			docs = filepath.Dir(args[0])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		batch := sheet.New(client, sheet.Options{
			Sheet:        sheetName,
			DocumentsDir: docs,
			Row:          row,
			Archive:      archive,
			FillCategory: fill,
		}, slog.Default())

		res, err := batch.Run(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printSuccess("Processed %d row(s)", res.Processed)
		if res.Failed > 0 {
			printWarning("%d row(s) failed; see the feedback column", res.Failed)
		}
		if res.Skipped > 0 {
			printInfo("%d row(s) without a document were skipped", res.Skipped)
		}
		return nil
	},
}

func init() {
	sheetCmd.Flags().String("sheet", sheet.DefaultSheet, "worksheet name")
	sheetCmd.Flags().String("docs", "", "directory holding the referenced documents (default: workbook directory)")
	sheetCmd.Flags().Int("row", 0, "process only this 1-based row")
	sheetCmd.Flags().Bool("archive", false, "move curated documents into aprovados/ or reprovados/")
	sheetCmd.Flags().Bool("fill-category", false, "classify rows with an empty CATEGORIA cell")
}

// --- knowledge base ---

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the curated knowledge base",
}

var kbAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a curated document to the knowledge base",
	Long: `Add a curated document to the knowledge base. It is indexed in the background.

Examples:
  curador kb add --title "Manejo de solos" --summary "..." --conclusion "..."
  curador kb add --title "Relatório" --file relatorio.pdf --collection BaseCurador`,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		summary, _ := cmd.Flags().GetString("summary")
		conclusion, _ := cmd.Flags().GetString("conclusion")
		text, _ := cmd.Flags().GetString("text")
		file, _ := cmd.Flags().GetString("file")
		collection, _ := cmd.Flags().GetString("collection")

		if title == "" && summary == "" && conclusion == "" && text == "" && file == "" {
			return fmt.Errorf("one of --title, --summary, --conclusion, --text or --file is required")
		}

		req := map[string]any{"source": "cli"}
		for k, v := range map[string]string{
			"title":      title,
			"summary":    summary,
			"conclusion": conclusion,
			"text":       text,
			"collection": collection,
		} {
			if v != "" {
				req[k] = v
			}
		}
		if file != "" {
			fr, err := fileRequest(file)
			if err != nil {
				return err
			}
			req["encoded_content"] = fr.EncodedContent
			req["content_type"] = fr.ContentType
			if title == "" {
				req["title"] = filepath.Base(file)
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/knowledge", req)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Queued doc %s", result["id"])
		return nil
	},
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge base documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		collection, _ := cmd.Flags().GetString("collection")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		docs, err := listKnowledgeIn(cmd.Context(), client, collection, limit, 0)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			printInfo("No documents")
			return nil
		}
		for _, d := range docs {
			title := d.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("  %s  %-8s %s\n", colorize(colorGray, d.ID), d.Status, title)
			if d.LastError != "" {
				fmt.Printf("      %s\n", colorize(colorRed, d.LastError))
			}
		}
		return nil
	},
}

var kbDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a knowledge base document and its vector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := deleteKnowledge(cmd.Context(), client, args[0]); err != nil {
			return err
		}
		printSuccess("Deleted doc %s", args[0])
		return nil
	},
}

var kbPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every document of a collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		collection, _ := cmd.Flags().GetString("collection")
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("purge deletes every document; rerun with --yes to confirm")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		deleted, failures, err := purgeKnowledge(cmd.Context(), client, collection)
		if err != nil {
			return err
		}
		printSuccess("Deleted %d doc(s)", deleted)
		if failures > 0 {
			return fmt.Errorf("%d doc(s) could not be deleted", failures)
		}
		return nil
	},
}

func init() {
	kbAddCmd.Flags().String("title", "", "document title")
	kbAddCmd.Flags().String("summary", "", "curated summary")
	kbAddCmd.Flags().String("conclusion", "", "curated conclusion")
	kbAddCmd.Flags().String("text", "", "free text body")
	kbAddCmd.Flags().String("file", "", "document to extract the body from (.pdf or text)")
	kbAddCmd.Flags().String("collection", "", "target collection (default: server collection)")

	kbListCmd.Flags().Int("limit", 20, "maximum number of documents")
	kbListCmd.Flags().String("collection", "", "collection to list (default: server collection)")

	kbPurgeCmd.Flags().String("collection", "", "collection to purge (default: server collection)")
	kbPurgeCmd.Flags().Bool("yes", false, "confirm deletion")

	kbCmd.AddCommand(kbAddCmd)
	kbCmd.AddCommand(kbListCmd)
	kbCmd.AddCommand(kbDeleteCmd)
	kbCmd.AddCommand(kbPurgeCmd)
}

func listKnowledge(ctx context.Context, c *apiClient, limit, offset int) ([]storage.KnowledgeDoc, error) {
	return listKnowledgeIn(ctx, c, "", limit, offset)
}

func listKnowledgeIn(ctx context.Context, c *apiClient, collection string, limit, offset int) ([]storage.KnowledgeDoc, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	q.Set("offset", fmt.Sprint(offset))
	if collection != "" {
		q.Set("collection", collection)
	}
	resp, err := c.get(ctx, "/knowledge?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var docs []storage.KnowledgeDoc
	if err := decodeJSON(resp, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func deleteKnowledge(ctx context.Context, c *apiClient, id string) error {
	resp, err := c.delete(ctx, "/knowledge/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	var result map[string]string
	return decodeJSON(resp, &result)
}

// purgeKnowledge pages through a collection deleting each document. Failed
// deletions are counted and skipped so one bad document does not stall the
// rest.
func purgeKnowledge(ctx context.Context, c *apiClient, collection string) (deleted, failures int, err error) {
	const page = 100
	offset := 0
	for {
		docs, err := listKnowledgeIn(ctx, c, collection, page, offset)
		if err != nil {
			return deleted, failures, err
		}
		if len(docs) == 0 {
			return deleted, failures, nil
		}
		for _, d := range docs {
			if err := deleteKnowledge(ctx, c, d.ID); err != nil {
				printWarning("deleting %s: %v", d.ID, err)
				failures++
				continue
			}
			deleted++
		}
		// Failed documents remain in the listing; step past them.
		offset = failures
	}
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorGray, k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value. Valid keys:\n  " +
		strings.Join(config.ValidKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
