package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	srsmap "github.com/aayushanand1411/srsmap"
	"github.com/aayushanand1411/srsmap/export"
	"github.com/aayushanand1411/srsmap/scoring"
	"github.com/aayushanand1411/srsmap/store"
)

var version = "0.1.0"

func main() {
	// .env is optional; real environment wins.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "srsmap",
		Short: "Map requirements documents onto the canonical SRS section set",
		Long: `srsmap splits a requirements document by its numbered headings,
maps each section onto a canonical SRS category by embedding similarity
with a lexical fuzzy fallback, and can verify the mapped document
against a weighted question bank using a local chat model.`,
		Version: version,
	}

	rootCmd.PersistentFlags().String("config", "", "config file (JSON or YAML)")
	rootCmd.PersistentFlags().String("db", "", "database path")
	rootCmd.PersistentFlags().Bool("verbose", false, "debug logging")

	rootCmd.AddCommand(mapCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(questionsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration with precedence:
// flags > SRSMAP_* environment > config file > defaults.
func loadConfig(cmd *cobra.Command) (srsmap.Config, error) {
	cfg := srsmap.DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("SRSMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("chat.provider", cfg.Chat.Provider)
	v.SetDefault("chat.model", cfg.Chat.Model)
	v.SetDefault("chat.base_url", cfg.Chat.BaseURL)
	v.SetDefault("embedding.provider", cfg.Embedding.Provider)
	v.SetDefault("embedding.model", cfg.Embedding.Model)
	v.SetDefault("embedding.base_url", cfg.Embedding.BaseURL)
	v.SetDefault("vision.provider", cfg.Vision.Provider)
	v.SetDefault("vision.model", cfg.Vision.Model)
	v.SetDefault("vision.base_url", cfg.Vision.BaseURL)
	v.SetDefault("semantic_threshold", cfg.SemanticThreshold)
	v.SetDefault("fuzzy_threshold", cfg.FuzzyThreshold)
	v.SetDefault("cover_page_line_limit", cfg.CoverPageLineLimit)
	v.SetDefault("overflow_label", cfg.OverflowLabel)
	v.SetDefault("reference_match_threshold", cfg.ReferenceMatchThreshold)
	v.SetDefault("embedding_dim", cfg.EmbeddingDim)
	v.SetDefault("crop_top_pt", cfg.CropTopPt)
	v.SetDefault("crop_bottom_pt", cfg.CropBottomPt)
	v.SetDefault("caption_images", cfg.CaptionImages)

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("srsmap")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.srsmap")
		}
		_ = v.ReadInConfig() // optional
	}

	cfg.DBPath = v.GetString("db_path")
	cfg.Chat.Provider = v.GetString("chat.provider")
	cfg.Chat.Model = v.GetString("chat.model")
	cfg.Chat.BaseURL = v.GetString("chat.base_url")
	cfg.Chat.APIKey = v.GetString("chat.api_key")
	cfg.Embedding.Provider = v.GetString("embedding.provider")
	cfg.Embedding.Model = v.GetString("embedding.model")
	cfg.Embedding.BaseURL = v.GetString("embedding.base_url")
	cfg.Embedding.APIKey = v.GetString("embedding.api_key")
	cfg.Vision.Provider = v.GetString("vision.provider")
	cfg.Vision.Model = v.GetString("vision.model")
	cfg.Vision.BaseURL = v.GetString("vision.base_url")
	cfg.SemanticThreshold = v.GetFloat64("semantic_threshold")
	cfg.FuzzyThreshold = v.GetInt("fuzzy_threshold")
	cfg.CoverPageLineLimit = v.GetInt("cover_page_line_limit")
	cfg.OverflowLabel = v.GetString("overflow_label")
	cfg.ReferenceMatchThreshold = v.GetInt("reference_match_threshold")
	cfg.EmbeddingDim = v.GetInt("embedding_dim")
	cfg.CropTopPt = v.GetFloat64("crop_top_pt")
	cfg.CropBottomPt = v.GetFloat64("crop_bottom_pt")
	cfg.CaptionImages = v.GetBool("caption_images")

	// Flags win last.
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}

	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	return cfg, nil
}

func newEngine(cmd *cobra.Command) (srsmap.Engine, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return srsmap.New(cfg)
}

func mapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map <file>",
		Short: "Map a document's sections onto the canonical categories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.MapFile(context.Background(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Run %d mapped %q with %s in %s\n",
				res.RunID, args[0], res.Model, res.Duration.Round(1e6))
			for _, note := range res.Notes {
				fmt.Printf("  note: %s\n", note)
			}
			for _, entry := range res.Results.Entries() {
				marker := " "
				if entry.Assigned() || entry.Content != "" {
					marker = "x"
				}
				fmt.Printf("  [%s] %s\n", marker, entry.Category)
			}

			if out, _ := cmd.Flags().GetString("output"); out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := export.JSON(f, res.Results); err != nil {
					return err
				}
				fmt.Printf("Wrote %s\n", out)
			}
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "write the mapped result set as JSON")
	return cmd
}

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <run-id>",
		Short: "Judge a mapped run against the question bank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			docType, _ := cmd.Flags().GetString("doc-type")
			report, err := eng.Verify(context.Background(), runID, docType)
			if err != nil {
				return err
			}

			for _, qr := range report.Questions {
				fmt.Printf("%s  (score %.2f)\n", qr.Question.Question, qr.Score)
				for _, sv := range qr.Verdicts {
					fmt.Printf("  - %-13s %s\n", sv.Answer, sv.SubQuestion)
				}
			}
			fmt.Printf("\nScore out of 10: %.2f\n", report.Total)
			return nil
		},
	}
	cmd.Flags().String("doc-type", "", "restrict the question bank to one document type")
	return cmd
}

func questionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Manage the verification question bank",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			docType, _ := cmd.Flags().GetString("doc-type")
			questions, err := eng.Store().ListQuestions(context.Background(), docType)
			if err != nil {
				return err
			}
			for _, q := range questions {
				fmt.Printf("%3d  [%s] %s (%d sub-questions, weight %.2f)\n",
					q.ID, q.DocType, q.Question, len(q.SubQuestions), q.Weight)
			}
			return nil
		},
	}
	list.Flags().String("doc-type", "", "filter by document type")

	add := &cobra.Command{
		Use:   "add <file.json>",
		Short: "Add questions from a JSON file (single object or array)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var batch []store.Question
			if err := json.Unmarshal(data, &batch); err != nil {
				var single store.Question
				if err := json.Unmarshal(data, &single); err != nil {
					return fmt.Errorf("parsing %s: %w", args[0], err)
				}
				batch = []store.Question{single}
			}

			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			for _, q := range batch {
				id, err := eng.Store().AddQuestion(context.Background(), q)
				if err != nil {
					return err
				}
				fmt.Printf("added question %d\n", id)
			}
			return nil
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a question and its verdicts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid question id %q", args[0])
			}
			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := eng.Store().DeleteQuestion(context.Background(), id); err != nil {
				return err
			}
			fmt.Printf("removed question %d\n", id)
			return nil
		},
	}

	cmd.AddCommand(list, add, rm)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a run as JSON, CSV, XLSX or a markdown report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx := context.Background()
			s := eng.Store()
			run, err := s.GetRun(ctx, runID)
			if err != nil {
				return fmt.Errorf("run %d: %w", runID, err)
			}
			sections, err := s.GetMappedSections(ctx, runID)
			if err != nil {
				return err
			}
			verdicts, err := s.GetVerdicts(ctx, runID)
			if err != nil {
				return err
			}
			report := reportFor(ctx, s, verdicts)

			out := os.Stdout
			if path, _ := cmd.Flags().GetString("output"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			format, _ := cmd.Flags().GetString("format")
			switch format {
			case "json":
				return export.JSON(out, map[string]any{"run": run, "sections": sections, "report": report})
			case "csv":
				if report == nil {
					return fmt.Errorf("run %d has not been verified", runID)
				}
				return export.VerdictsCSV(out, report)
			case "xlsx":
				return export.XLSX(out, sections, report)
			case "md", "markdown":
				_, err := fmt.Fprint(out, export.MarkdownReport(run, sections, report))
				return err
			default:
				return fmt.Errorf("unknown format %q (json, csv, xlsx, md)", format)
			}
		},
	}
	cmd.Flags().StringP("format", "f", "json", "export format: json, csv, xlsx, md")
	cmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	return cmd
}

// reportFor rebuilds the persisted verification report, or nil for an
// unverified run.
func reportFor(ctx context.Context, s *store.Store, verdicts []store.Verdict) *scoring.Report {
	if len(verdicts) == 0 {
		return nil
	}
	questions, err := s.ListQuestions(ctx, "")
	if err != nil {
		slog.Warn("loading questions for report", "error", err)
		return nil
	}
	return scoring.ReportFromRows(questions, verdicts)
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			stats, err := eng.Store().DBStats(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("runs: %d\nsections: %d\nquestions: %d\nverdicts: %d\ncached labels: %d\n",
				stats.Runs, stats.Sections, stats.Questions, stats.Verdicts, stats.CachedLabels)
			return nil
		},
	}
}
