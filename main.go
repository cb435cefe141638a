package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/anycompany/docsearch/chunker"
	"github.com/anycompany/docsearch/config"
	"github.com/anycompany/docsearch/database"
	"github.com/anycompany/docsearch/embeddings"
	"github.com/anycompany/docsearch/enrich"
	"github.com/anycompany/docsearch/extract"
	"github.com/anycompany/docsearch/genai"
	"github.com/anycompany/docsearch/ingest"
	"github.com/anycompany/docsearch/query"
	"github.com/anycompany/docsearch/schema"
	"github.com/anycompany/docsearch/search"
	"github.com/anycompany/docsearch/store"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Printf("load .env: %v", err)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	switch os.Args[1] {
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "search":
		searchCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	dataDir := flags.String("dir", cfg.DataDir, "path to directory containing documents")
	workers := flags.Int("workers", 4, "number of documents processed in parallel")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s := loadSchema(cfg, logger)
	st, cleanup := newStore(ctx, cfg, s, logger)
	defer cleanup()

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	model, err := genai.NewClient(cfg)
	if err != nil {
		logger.Fatalf("model setup: %v", err)
	}
	guarded := genai.NewGuardedClient(model, genai.GuardOptions{RequestsPerMinute: cfg.Model.RequestsPerMinute})
	policy := genai.PolicyFromConfig(cfg.Retry)

	ch, err := chunker.New(cfg.Chunking)
	if err != nil {
		logger.Fatalf("chunker setup: %v", err)
	}

	extractor := extract.New(guarded, policy, logger)
	svc := ingest.NewService(st, embedder, extractor, ch, s, cfg.MetadataScope, *workers, logger)

	logger.Printf("ingesting documents from %s using %s/%s embeddings", *dataDir, strings.ToUpper(cfg.Embeddings.Provider), cfg.Embeddings.Model)
	if err := svc.IngestDirectory(ctx, *dataDir); err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}
}

func searchCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("search", flag.ExitOnError)
	question := flags.String("question", "", "natural-language question")
	groupField := flags.String("group-by", cfg.Search.GroupField, "metadata field used to group results")
	k := flags.Int("k", 5, "maximum number of result groups")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse search flags: %v", err)
	}
	if strings.TrimSpace(*question) == "" {
		logger.Fatal("search requires --question")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s := loadSchema(cfg, logger)
	st, cleanup := newStore(ctx, cfg, s, logger)
	defer cleanup()

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	model, err := genai.NewClient(cfg)
	if err != nil {
		logger.Fatalf("model setup: %v", err)
	}
	guarded := genai.NewGuardedClient(model, genai.GuardOptions{RequestsPerMinute: cfg.Model.RequestsPerMinute})
	policy := genai.PolicyFromConfig(cfg.Retry)

	translator := query.NewTranslator(guarded, policy, cfg.StrictFilters, logger)
	translation, err := translator.Translate(ctx, *question, s)
	if err != nil {
		logger.Fatalf("translate question: %v", err)
	}

	retriever := search.NewRetriever(st, embedder, cfg.Search.OverfetchFactor, cfg.Search.GroupCap, logger)
	result, err := retriever.Search(ctx, translation.Query, translation.Predicate, *groupField, *k)
	if err != nil {
		logger.Fatalf("search failed: %v", err)
	}

	printResult(result, *groupField)
}

func printResult(result search.GroupedResult, groupField string) {
	if result.Empty() {
		fmt.Println("No matching documents.")
		return
	}

	for _, group := range result.Groups {
		key := group.Key
		if key == search.UngroupedKey {
			key = fmt.Sprintf("(no %s)", groupField)
		}
		fmt.Printf("%s (best score %.3f)\n", key, group.Members[0].Score)
		for _, member := range group.Members {
			snippet := strings.TrimSpace(member.Entry.Text)
			if len(snippet) > 200 {
				snippet = snippet[:200] + "..."
			}
			fmt.Printf("  %.3f  %s\n", member.Score, member.Entry.SourceURI)
			fmt.Printf("         %s\n", strings.ReplaceAll(snippet, "\n", " "))
		}
		fmt.Println()
	}
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		fmt.Print("This will permanently delete all indexed documents. Continue? [y/N]: ")
		var answer string
		if _, err := fmt.Scanln(&answer); err != nil {
			logger.Println("clear aborted")
			return
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s := loadSchema(cfg, logger)
	st, cleanup := newStore(ctx, cfg, s, logger)
	defer cleanup()

	if err := st.Clear(ctx); err != nil {
		logger.Fatalf("clear failed: %v", err)
	}
	logger.Println("indexed documents removed")
}

func loadSchema(cfg config.Config, logger *log.Logger) *schema.Schema {
	s, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		logger.Fatalf("load schema: %v", err)
	}
	if err := enrich.ValidateDefaults(s); err != nil {
		logger.Fatalf("schema defaults: %v", err)
	}
	return s
}

func newStore(ctx context.Context, cfg config.Config, s *schema.Schema, logger *log.Logger) (store.Store, func()) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return store.NewMemoryStore(cfg.Embeddings.Dimension), func() {}
	default:
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatalf("postgres connection: %v", err)
		}
		if err := database.EnsureIndexSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
			logger.Fatalf("ensure index schema: %v", err)
		}
		return store.NewPostgresStore(pool, s), pool.Close
	}
}

func printUsage() {
	fmt.Println("Usage: docsearch <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  ingest   Index documents from a directory (use --dir to override the data directory)")
	fmt.Println("  search   Ask a question and get results grouped by a metadata field")
	fmt.Println("  clear    Remove all indexed documents")
}
