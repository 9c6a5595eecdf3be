package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"

	"github.com/0xcro3dile/chatrag-go/internal/adapters/checkpoint"
	"github.com/0xcro3dile/chatrag-go/internal/adapters/embedding"
	"github.com/0xcro3dile/chatrag-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/chatrag-go/internal/adapters/llm"
	"github.com/0xcro3dile/chatrag-go/internal/adapters/loader"
	"github.com/0xcro3dile/chatrag-go/internal/adapters/report"
	"github.com/0xcro3dile/chatrag-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/chatrag-go/internal/config"
	"github.com/0xcro3dile/chatrag-go/internal/domain/entities"
	"github.com/0xcro3dile/chatrag-go/internal/domain/ports"
	"github.com/0xcro3dile/chatrag-go/internal/domain/usecases"
	httpserver "github.com/0xcro3dile/chatrag-go/internal/infrastructure/http"
	"github.com/0xcro3dile/chatrag-go/internal/infrastructure/tui"
)

const usage = `Usage: chatrag [-config config.yaml] <command> [flags]

Commands:
  ingest [-source path|url]                     index a chat export
  query  [-k n] [-sender s] [-system] [-from t] [-to t] <text>
  eval   [-expected text] <text>                show the top-ranked matches
  serve  [-watch]                               run the HTTP API
  tui                                           browse results interactively
`

var (
	boldGreen = color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan  = color.New(color.FgCyan, color.Bold).SprintFunc()
	boldRed   = color.New(color.FgRed, color.Bold).SprintFunc()
	faint     = color.New(color.Faint).SprintFunc()
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to YAML config file (defaults apply when missing)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[ERROR] Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatalf("[ERROR] Failed to initialize: %v", err)
	}
	defer app.Close()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "ingest":
		err = app.runIngest(ctx, args)
	case "query":
		err = app.runQuery(ctx, args)
	case "eval":
		err = app.runEval(ctx, args)
	case "serve":
		err = app.runServe(ctx, args)
	case "tui":
		err = app.runTUI(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", boldRed("Error:"), err)
		os.Exit(1)
	}
}

// app holds the wired pipeline for one process.
type app struct {
	cfg         *config.AppConfig
	loader      *loader.JSONLoader
	index       ports.VectorIndex
	checkpoints *checkpoint.BoltStore
	ingest      *usecases.IngestUseCase
	query       *usecases.QueryUseCase
	evaluate    *usecases.EvaluateUseCase
}

func newApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	embedder, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	generator, err := newGenerator(cfg.Generator)
	if err != nil {
		return nil, err
	}
	index, err := newIndex(ctx, cfg.Index)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, loader: loader.NewJSONLoader(), index: index}

	opts := usecases.IngestOptions{
		BatchSize:  cfg.Ingest.BatchSize,
		MaxRetries: cfg.Ingest.MaxRetries,
	}
	switch {
	case cfg.Ingest.CheckpointPath == "":
	case cfg.Index.Type == "memory":
		log.Printf("[WARN] Ignoring checkpoint_path: the memory index does not outlive the process")
	default:
		store, err := checkpoint.NewBoltStore(cfg.Ingest.CheckpointPath)
		if err != nil {
			index.Close()
			return nil, err
		}
		a.checkpoints = store
		opts.Checkpoints = store
	}

	a.ingest = usecases.NewIngestUseCase(embedder, index, opts)
	a.query = usecases.NewQueryUseCase(embedder, index, generator)
	a.evaluate = usecases.NewEvaluateUseCase(a.query, cfg.Query.EvalK)
	return a, nil
}

func (a *app) Close() {
	if a.checkpoints != nil {
		a.checkpoints.Close()
	}
	if err := a.index.Close(); err != nil {
		log.Printf("[WARN] Closing index: %v", err)
	}
}

func newEmbedder(cfg config.EmbedderConfig) (ports.EmbeddingService, error) {
	switch cfg.Type {
	case "ollama":
		log.Printf("[INFO] Using Ollama embedder")
		return embedding.NewOllamaEmbedder(cfg.BaseURL, cfg.Model, time.Duration(cfg.TimeoutSecs)*time.Second)
	default:
		return embedding.NewHashEmbedder(cfg.Dimension), nil
	}
}

func newGenerator(cfg config.GeneratorConfig) (ports.LLMService, error) {
	switch cfg.Type {
	case "ollama":
		log.Printf("[INFO] Using Ollama generator")
		return llm.NewOllamaGenerator(cfg.BaseURL, cfg.Model, time.Duration(cfg.TimeoutSecs)*time.Second)
	default:
		return llm.NewStubGenerator(), nil
	}
}

func newIndex(ctx context.Context, cfg config.IndexConfig) (ports.VectorIndex, error) {
	switch cfg.Type {
	case "sqlite":
		log.Printf("[INFO] Using SQLite index at %s (driver %s)", cfg.SQLite.Path, cfg.SQLite.Driver)
		return vectordb.NewSQLiteIndex(cfg.SQLite.Driver, cfg.SQLite.Path)
	case "qdrant":
		log.Printf("[INFO] Using Qdrant index at %s:%d", cfg.Qdrant.Host, cfg.Qdrant.Port)
		return vectordb.NewQdrantIndex(ctx, cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection)
	default:
		return vectordb.NewMemoryIndex(), nil
	}
}

func (a *app) runIngest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	source := fs.String("source", a.cfg.Corpus.Source, "Chat export file or URL")
	fs.Parse(args)

	if *source == "" {
		return errors.New("no source: pass -source or set corpus.source")
	}
	return a.ingestSource(ctx, *source)
}

func (a *app) ingestSource(ctx context.Context, source string) error {
	fmt.Printf("Ingesting %s\n", boldCyan(source))
	start := time.Now()
	stats, err := a.ingest.IngestSource(ctx, a.loader, source)
	if err != nil {
		var batchErr *entities.BatchError
		if errors.As(err, &batchErr) {
			fmt.Println(faint(fmt.Sprintf("Records before %d were written; rerun to resume.", batchErr.Start)))
		}
		return err
	}
	fmt.Printf("%s %d indexed, %d skipped, %d resumed in %s\n",
		boldGreen("Done:"), stats.Indexed, stats.Skipped, stats.Resumed, time.Since(start).Round(time.Millisecond))
	return nil
}

// ensureIndexed ingests the configured source when the index is empty, e.g. a fresh in-memory index.
func (a *app) ensureIndexed(ctx context.Context) error {
	n, err := a.index.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 || a.cfg.Corpus.Source == "" {
		return nil
	}
	return a.ingestSource(ctx, a.cfg.Corpus.Source)
}

func (a *app) runQuery(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	k := fs.Int("k", a.cfg.Query.K, "Number of messages to retrieve")
	sender := fs.String("sender", "", "Only messages from this sender")
	system := fs.Bool("system", false, "Search system messages instead of chat messages")
	from := fs.String("from", "", "Earliest timestamp (inclusive, ISO-8601)")
	to := fs.String("to", "", "Latest timestamp (inclusive, ISO-8601)")
	fs.Parse(args)

	text := strings.Join(fs.Args(), " ")
	if text == "" {
		return errors.New("query text required")
	}
	if err := a.ensureIndexed(ctx); err != nil {
		return err
	}

	result, err := a.query.Query(ctx, text, *k, buildFilters(*sender, *system, *from, *to))
	if err != nil {
		return err
	}

	fmt.Println(boldGreen("Response:"))
	fmt.Println(result.Response)
	fmt.Println()
	fmt.Println(boldCyan("Context:"))
	for i, m := range result.Matches {
		fmt.Printf("%d. %s %s\n", i+1, m.Document, faint(fmt.Sprintf("(distance %.4f, %s)", m.Distance, m.Metadata.Timestamp)))
	}
	return nil
}

func buildFilters(sender string, system bool, from, to string) *entities.FilterSpec {
	var spec entities.FilterSpec
	if sender != "" {
		spec = spec.And(entities.BySender(sender))
	}
	if system {
		spec = spec.And(entities.BySystem(true))
	}
	if from != "" || to != "" {
		spec = spec.And(entities.ByDateRange(from, to))
	}
	if spec.IsEmpty() {
		return nil
	}
	return &spec
}

func (a *app) runEval(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	expected := fs.String("expected", "", "Text the top results should contain")
	fs.Parse(args)

	text := strings.Join(fs.Args(), " ")
	if text == "" {
		return errors.New("query text required")
	}
	if err := a.ensureIndexed(ctx); err != nil {
		return err
	}

	rep, err := a.evaluate.Evaluate(ctx, text, *expected)
	if err != nil {
		return err
	}
	return report.NewTerminal(os.Stdout).Render(rep)
}

func (a *app) runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	watch := fs.Bool("watch", a.cfg.Corpus.Watch, "Re-ingest the corpus file when it changes")
	fs.Parse(args)

	if err := a.ensureIndexed(ctx); err != nil {
		return err
	}

	if *watch {
		if err := a.startSync(ctx); err != nil {
			return err
		}
	}

	server := httpserver.NewServer(a.query, a.ingest, a.evaluate, a.loader, a.index, a.cfg.Corpus.Source, a.cfg.Server.Addr)
	fmt.Printf("%s listening on %s\n", boldGreen("ChatRAG"), boldCyan(a.cfg.Server.Addr))
	return server.Start(ctx)
}

func (a *app) startSync(ctx context.Context) error {
	source := a.cfg.Corpus.Source
	if source == "" || strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return errors.New("watch needs a local corpus file")
	}

	watcher, err := filewatcher.NewFSNotifyWatcher([]string{".json"}, filewatcher.DefaultDebounce)
	if err != nil {
		return err
	}
	syncUC := usecases.NewSyncUseCase(a.ingest, a.loader)
	go func() {
		defer watcher.Stop()
		if err := syncUC.Run(ctx, watcher, source); err != nil {
			log.Printf("[ERROR] Corpus watch stopped: %v", err)
		}
	}()
	return nil
}

func (a *app) runTUI(ctx context.Context) error {
	if err := a.ensureIndexed(ctx); err != nil {
		return err
	}
	m := tui.New(ctx, a.query, a.cfg.Query.K)
	_, err := tea.NewProgram(m).Run()
	return err
}
