package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/tutordesk/internal/config"
	"github.com/kalambet/tutordesk/internal/escalation"
	"github.com/kalambet/tutordesk/internal/ingest"
	"github.com/kalambet/tutordesk/internal/intent"
	"github.com/kalambet/tutordesk/internal/knowledge"
	"github.com/kalambet/tutordesk/internal/storage"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Add a document to the knowledge index",
	Long: `Add a document to the knowledge index.

Examples:
  tutordesk ingest --text "A secretaria abre às 9h" --tags secretaria
  tutordesk ingest --url https://example.com/regulamento --tags regras
  tutordesk ingest --file ./precario.pdf --title "Preçário 2026"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		rawURL, _ := cmd.Flags().GetString("url")
		file, _ := cmd.Flags().GetString("file")
		title, _ := cmd.Flags().GetString("title")
		tags, _ := cmd.Flags().GetString("tags")

		req, err := buildIngestRequest(text, rawURL, file, title, tags)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var result struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if err := client.call(cmd.Context(), http.MethodPost, "/knowledge", req, &result); err != nil {
			return err
		}

		printSuccess("Queued doc %s", result.ID)
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("text", "", "text content to ingest")
	ingestCmd.Flags().String("url", "", "URL to fetch and ingest")
	ingestCmd.Flags().String("file", "", "text, HTML, or PDF file to ingest")
	ingestCmd.Flags().String("title", "", "title for the document")
	ingestCmd.Flags().String("tags", "", "comma-separated tags")
}

func buildIngestRequest(text, rawURL, file, title, tags string) (ingest.Request, error) {
	req := ingest.Request{Source: "cli", Title: title, Tags: splitTags(tags)}
	switch {
	case text != "":
		req.ContentType = ingest.TypeText
		req.Content = text
	case rawURL != "":
		req.URL = rawURL
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return ingest.Request{}, fmt.Errorf("reading file: %w", err)
		}
		req.ContentType = contentTypeFor(file)
		if req.ContentType == ingest.TypePDF {
			req.Content = base64.StdEncoding.EncodeToString(data)
		} else {
			req.Content = string(data)
		}
		if req.Title == "" {
			req.Title = filepath.Base(file)
		}
	default:
		return ingest.Request{}, fmt.Errorf("one of --text, --url, or --file is required")
	}
	return req, nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return ingest.TypePDF
	case ".html", ".htm":
		return ingest.TypeHTML
	default:
		return ingest.TypeText
	}
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// --- knowledge ---

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Inspect the knowledge index",
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var docs []storage.KnowledgeDoc
		path := fmt.Sprintf("/knowledge?limit=%d&offset=%d", limit, offset)
		if err := client.call(cmd.Context(), http.MethodGet, path, nil, &docs); err != nil {
			return err
		}
		printDocs(cmd.OutOrStdout(), docs)
		return nil
	},
}

var knowledgeShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single document as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var doc storage.KnowledgeDoc
		if err := client.call(cmd.Context(), http.MethodGet, "/knowledge/"+url.PathEscape(args[0]), nil, &doc); err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search ingested documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var sources []knowledge.Source
		path := fmt.Sprintf("/knowledge/search?q=%s&limit=%d", url.QueryEscape(query), limit)
		if err := client.call(cmd.Context(), http.MethodGet, path, nil, &sources); err != nil {
			return err
		}
		printSources(cmd.OutOrStdout(), sources)
		return nil
	},
}

var knowledgeDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := client.call(cmd.Context(), http.MethodDelete, "/knowledge/"+url.PathEscape(args[0]), nil, nil); err != nil {
			return err
		}
		printSuccess("Deleted doc %s", args[0])
		return nil
	},
}

func init() {
	knowledgeListCmd.Flags().Int("limit", 20, "maximum number of documents to list")
	knowledgeListCmd.Flags().Int("offset", 0, "number of documents to skip")
	knowledgeSearchCmd.Flags().Int("limit", 5, "maximum number of results")
	knowledgeCmd.AddCommand(knowledgeListCmd, knowledgeShowCmd, knowledgeSearchCmd, knowledgeDeleteCmd)
}

func printDocs(w io.Writer, docs []storage.KnowledgeDoc) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents found.")
		return
	}
	for _, d := range docs {
		id := d.ID
		if len(id) > 8 {
			id = id[:8]
		}
		status := d.Status
		if d.Status == storage.DocFailed {
			status = colorize(colorRed, status)
		}
		fmt.Fprintf(w, "%s  %-8s  %s  %s\n", colorize(colorCyan, id), status, d.CreatedAt.Format("2006-01-02"), d.Title)
	}
}

func printSources(w io.Writer, sources []knowledge.Source) {
	if len(sources) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	for i, s := range sources {
		header := colorize(colorBold, fmt.Sprintf("[%d] %s", i+1, s.Title))
		if s.Score != nil {
			header += fmt.Sprintf(" (score: %.2f)", *s.Score)
		}
		fmt.Fprintln(w, header)
		if s.Snippet != "" {
			fmt.Fprintf(w, "    %s\n", s.Snippet)
		}
		if s.URL != "" {
			fmt.Fprintf(w, "    %s\n", colorize(colorDim, s.URL))
		}
	}
}

// --- classify ---

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Show how a message would be routed, without a server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		w := cmd.OutOrStdout()

		in := intent.Classify(text)
		fmt.Fprintf(w, "intent:     %s\n", in)
		if req, ok := intent.RequestedEscalation(text); ok {
			fmt.Fprintf(w, "escalation: explicit (%s)\n", req)
		} else {
			fmt.Fprintf(w, "escalation: %s (if unanswered)\n", targetLabel(escalation.Decide(text, "", in)))
		}
		printSources(w, knowledge.Default().Search(text))
		return nil
	},
}

func targetLabel(t escalation.Target) string {
	if t == escalation.None {
		return "none"
	}
	return string(t)
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
		for _, k := range config.ShowAll(config.LoadRelaxed()) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorDim, "("+k.EnvVar+")"))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}
		printSuccess("Set %s", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
}
