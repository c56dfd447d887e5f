// Command memindex administers a semantic memory index: bulk indexing of
// source files, integrity verification, retry-queue processing, and
// failed-embedding listing. Every subcommand supports machine-readable
// output via -json and exits non-zero when it leaves the index in a
// non-healthy state.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/viant/memindex/config"
	"github.com/viant/memindex/embed"
	"github.com/viant/memindex/engine"
	"github.com/viant/memindex/memory"
	"github.com/viant/memindex/retry"
	"github.com/viant/memindex/store"
)

const usage = `Usage: memindex <command> [flags]

Commands:
  index    scan a base directory and index markdown sources
  verify   check metadata/vector integrity, optionally repair with -fix
  retry    process the embedding retry queue
  failed   list permanently failed embeddings, reset one with -reset <id>
  search   query the index from the command line

Run "memindex <command> -h" for command flags.`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	var err error
	switch os.Args[1] {
	case "index":
		err = runIndex(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	case "retry":
		err = runRetry(os.Args[2:])
	case "failed":
		err = runFailed(os.Args[2:])
	case "search":
		err = runSearch(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "memindex: unknown command %q\n%s\n", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "memindex: %v\n", err)
		os.Exit(1)
	}
}

// exitUnhealthy terminates with a distinct code so callers can separate
// "operation failed" (1) from "operation ran, index unhealthy" (3).
func exitUnhealthy(hint string) {
	fmt.Fprintf(os.Stderr, "memindex: index is not healthy; %s\n", hint)
	os.Exit(3)
}

type session struct {
	cfg   *config.Config
	db    *sql.DB
	store *store.Store
	index *memory.Index
}

func open(cfgPath, dbOverride string) (*session, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if dbOverride != "" {
		cfg.DBPath = dbOverride
	}
	// Functions must be registered before the first connection opens.
	if err := engine.RegisterVectorFunctions(nil); err != nil {
		return nil, err
	}
	db, err := engine.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	s, err := store.New(db, store.WithDimensions(cfg.Dimensions))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	generator, err := cfg.NewGenerator()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &session{cfg: cfg, db: db, store: s, index: memory.New(s, generator)}, nil
}

func (s *session) close() {
	_ = s.index.Generator().Close()
	_ = s.db.Close()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runIndex(args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file path")
	dbPath := fs.String("db", "", "database path override")
	base := fs.String("base", ".", "base directory to scan for sources")
	workers := fs.Int("workers", 4, "concurrent file readers")
	dryRun := fs.Bool("dry-run", false, "print the scan manifest without indexing")
	asJSON := fs.Bool("json", false, "machine-readable output")
	_ = fs.Parse(args)

	entries, err := scanSources(*base)
	if err != nil {
		return err
	}
	if *dryRun {
		if *asJSON {
			return printJSON(entries)
		}
		for _, entry := range entries {
			fmt.Printf("%s\t%s\t%s\n", entry.SpecFolder, entry.FilePath, entry.AnchorID)
		}
		fmt.Printf("%d source files\n", len(entries))
		return nil
	}

	s, err := open(*cfgPath, *dbPath)
	if err != nil {
		return err
	}
	defer s.close()

	result, err := s.index.BulkIndex(context.Background(), *base, entries, *workers)
	if err != nil {
		return err
	}
	if *asJSON {
		if err := printJSON(result); err != nil {
			return err
		}
	} else {
		fmt.Printf("indexed %d, pending %d, failed %d of %d files\n",
			result.Indexed, result.Pending, len(result.Failures), len(entries))
		for _, failure := range result.Failures {
			fmt.Printf("  %s: %v\n", failure.FilePath, failure.Err)
		}
	}
	if len(result.Failures) > 0 {
		exitUnhealthy(`fix the listed sources and re-run "memindex index"`)
	}
	return nil
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file path")
	dbPath := fs.String("db", "", "database path override")
	base := fs.String("base", "", "base directory for file existence checks")
	fix := fs.Bool("fix", false, "repair violations and clean up orphans")
	asJSON := fs.Bool("json", false, "machine-readable output")
	_ = fs.Parse(args)

	s, err := open(*cfgPath, *dbPath)
	if err != nil {
		return err
	}
	defer s.close()
	ctx := context.Background()

	verify := func() (*store.IntegrityReport, error) {
		if *base != "" {
			return s.store.VerifyIntegrityWithPaths(ctx, *base)
		}
		return s.store.VerifyIntegrity(ctx)
	}
	report, err := verify()
	if err != nil {
		return err
	}
	if *fix && !report.Healthy() {
		if _, err := s.store.RepairIntegrity(ctx); err != nil {
			return err
		}
		if *base != "" && len(report.MissingFiles) > 0 {
			cleanup, err := s.store.CleanupOrphans(ctx, *base)
			if err != nil {
				return err
			}
			if !*asJSON {
				fmt.Printf("removed %d records for missing files (%d -> %d memories, %d -> %d vectors)\n",
					len(cleanup.RemovedIDs), cleanup.MemoriesBefore, cleanup.MemoriesAfter,
					cleanup.VectorsBefore, cleanup.VectorsAfter)
			}
		}
		if report, err = verify(); err != nil {
			return err
		}
	}
	if *asJSON {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		fmt.Printf("memories %d, vectors %d, orphaned vectors %d, missing vectors %d, missing files %d\n",
			report.MemoryCount, report.VectorCount, len(report.OrphanedVectors),
			len(report.MissingVectors), len(report.MissingFiles))
	}
	if !report.Healthy() {
		exitUnhealthy(`run "memindex verify -fix" (add -base <dir> to also drop records for deleted files)`)
	}
	return nil
}

func runRetry(args []string) error {
	fs := flag.NewFlagSet("retry", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file path")
	dbPath := fs.String("db", "", "database path override")
	limit := fs.Int("limit", 20, "maximum records to attempt")
	asJSON := fs.Bool("json", false, "machine-readable output")
	_ = fs.Parse(args)

	s, err := open(*cfgPath, *dbPath)
	if err != nil {
		return err
	}
	defer s.close()
	ctx := context.Background()

	manager := retry.New(s.store, s.index.Generator(),
		retry.WithMaxRetries(s.cfg.MaxRetries),
		retry.WithBackoff(s.cfg.Backoff()),
		retry.WithBasePath(s.cfg.BasePath))
	result, err := manager.ProcessRetryQueue(ctx, *limit)
	if err != nil {
		return err
	}
	stats, err := manager.GetRetryStats(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		out := map[string]interface{}{"result": result, "stats": stats}
		if cached, ok := s.index.Generator().Embedder().(*embed.Cached); ok {
			out["cache"] = cached.Metrics()
		}
		if err := printJSON(out); err != nil {
			return err
		}
	} else {
		fmt.Printf("attempted %d: %d succeeded, %d retried, %d exhausted, %d waiting on backoff\n",
			result.Processed, result.Succeeded, result.Retried, result.Exhausted, result.Skipped)
		fmt.Printf("queue: %d pending, %d retrying, %d failed, %d success\n",
			stats.Pending, stats.Retrying, stats.Failed, stats.Success)
	}
	if stats.Failed > 0 {
		exitUnhealthy(`inspect "memindex failed" and re-queue with -reset <id>`)
	}
	return nil
}

func runFailed(args []string) error {
	fs := flag.NewFlagSet("failed", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file path")
	dbPath := fs.String("db", "", "database path override")
	reset := fs.Int64("reset", 0, "reset the failed record with this id back into the retry queue")
	asJSON := fs.Bool("json", false, "machine-readable output")
	_ = fs.Parse(args)

	s, err := open(*cfgPath, *dbPath)
	if err != nil {
		return err
	}
	defer s.close()
	ctx := context.Background()

	manager := retry.New(s.store, s.index.Generator(), retry.WithMaxRetries(s.cfg.MaxRetries))
	if *reset != 0 {
		ok, err := manager.ResetForRetry(ctx, *reset)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf(`record %d is not in failed status; only failed records can be reset`, *reset)
		}
		fmt.Printf("record %d re-queued; run \"memindex retry\" to attempt it\n", *reset)
		return nil
	}

	failed, err := manager.GetFailedEmbeddings(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		if err := printJSON(failed); err != nil {
			return err
		}
	} else {
		for _, record := range failed {
			fmt.Printf("%d\t%s/%s\tretries=%d\t%s\n",
				record.ID, record.SpecFolder, record.FilePath, record.RetryCount, record.FailureReason)
		}
		fmt.Printf("%d permanently failed\n", len(failed))
	}
	if len(failed) > 0 {
		exitUnhealthy(`re-queue records with "memindex failed -reset <id>" after addressing the failure reason`)
	}
	return nil
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file path")
	dbPath := fs.String("db", "", "database path override")
	query := fs.String("q", "", "query text")
	folder := fs.String("folder", "", "restrict to one spec folder")
	limit := fs.Int("limit", 10, "maximum results")
	minSim := fs.Float64("min", 0, "minimum similarity percentage")
	asJSON := fs.Bool("json", false, "machine-readable output")
	_ = fs.Parse(args)

	if *query == "" {
		return fmt.Errorf("search: -q is required")
	}
	s, err := open(*cfgPath, *dbPath)
	if err != nil {
		return err
	}
	defer s.close()

	results, err := s.index.Search(context.Background(), *query, memory.SearchOptions{
		SpecFolder:    *folder,
		Limit:         *limit,
		MinSimilarity: *minSim,
	})
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(results)
	}
	for _, result := range results {
		fmt.Printf("%6.2f%%\t%d\t%s\t%s\n", result.Similarity, result.ID, result.FilePath, result.Title)
	}
	return nil
}
