// Package main 离线构建与调试命令行（graph-builder）
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"novel-rag-engine/internal/application/graph"
	"novel-rag-engine/internal/application/qa"
	"novel-rag-engine/internal/bootstrap"
	"novel-rag-engine/internal/config"
	"novel-rag-engine/internal/infrastructure/persistence/postgres"
	einoobs "novel-rag-engine/internal/observability/eino"
	"novel-rag-engine/pkg/logger"
)

var (
	buildIndex    bool
	statsRevision int
	historyTop    int
	askChapters   int
	askSkipVerify bool
)

var rootCmd = &cobra.Command{
	Use:           "graph-builder",
	Short:         "Build and inspect novel knowledge graphs",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var buildCmd = &cobra.Command{
	Use:   "build [corpus.json]",
	Short: "Recognize entities, classify relations and save a graph snapshot",
	Long: `Reads a JSON corpus ({"id", "chapters": [{"number", "title", "text"}], "aliases"}),
optionally indexes it for hybrid retrieval, then rebuilds the temporal knowledge graph.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

var statsCmd = &cobra.Command{
	Use:   "stats [corpus-id]",
	Short: "Print the saved graph snapshot summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [corpus-id]",
	Short: "Delete the graph snapshot and retrieval index of a corpus",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var historyCmd = &cobra.Command{
	Use:   "history [corpus-id]",
	Short: "List archived snapshot revisions (postgres store only)",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var askCmd = &cobra.Command{
	Use:   "ask [corpus-id] [question]",
	Short: "Answer a question against an indexed corpus",
	Args:  cobra.ExactArgs(2),
	RunE:  runAsk,
}

func init() {
	buildCmd.Flags().BoolVar(&buildIndex, "index", true, "also rebuild the vector and keyword index")
	statsCmd.Flags().IntVar(&statsRevision, "revision", 0, "archived revision to inspect (postgres store only)")
	historyCmd.Flags().IntVar(&historyTop, "top", 10, "number of most important chapters to show")
	askCmd.Flags().IntVar(&askChapters, "chapters", 0, "chapters read so far, 0 for the whole book")
	askCmd.Flags().BoolVar(&askSkipVerify, "skip-verify", false, "skip the self-verification pass")
	rootCmd.AddCommand(buildCmd, statsCmd, historyCmd, deleteCmd, askCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// withEngine 加载配置并组装组件；收到中断信号时取消 ctx，构建不会写入半成品快照
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, e *bootstrap.Engine) error) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	einoobs.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, cleanup, err := bootstrap.NewEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return fn(ctx, engine)
}

func runBuild(cmd *cobra.Command, args []string) error {
	c, err := bootstrap.ReadCorpusFile(args[0])
	if err != nil {
		return err
	}
	return withEngine(cmd, func(ctx context.Context, e *bootstrap.Engine) error {
		report, err := e.Ingest(ctx, c, buildIndex)
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	})
}

func runStats(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e *bootstrap.Engine) error {
		if statsRevision > 0 {
			archive, err := archiveOf(e)
			if err != nil {
				return err
			}
			g, err := archive.LoadRevision(ctx, args[0], statsRevision)
			if err != nil {
				return err
			}
			return printJSON(cmd, graph.NewQuery(g).Stats())
		}
		q, err := e.Graphs.Open(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, q.Stats())
	})
}

func runHistory(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e *bootstrap.Engine) error {
		archive, err := archiveOf(e)
		if err != nil {
			return err
		}
		revisions, err := archive.Revisions(ctx, args[0])
		if err != nil {
			return err
		}
		top, err := archive.TopChapters(ctx, args[0], historyTop)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{
			"revisions":    revisions,
			"top_chapters": top,
		})
	})
}

func archiveOf(e *bootstrap.Engine) (*postgres.SnapshotRepository, error) {
	archive, ok := e.Snapshots.(*postgres.SnapshotRepository)
	if !ok {
		return nil, errors.New("snapshot history requires graph.snapshot_store=postgres")
	}
	return archive, nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e *bootstrap.Engine) error {
		if err := e.Graphs.Delete(ctx, args[0]); err != nil {
			return err
		}
		if err := e.Indexer.DropCorpus(ctx, args[0]); err != nil {
			return err
		}
		cmd.Printf("deleted %s\n", args[0])
		return nil
	})
}

func runAsk(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, e *bootstrap.Engine) error {
		out, err := e.QA.Ask(ctx, qa.AskInput{
			CorpusID:      args[0],
			Question:      args[1],
			TotalChapters: askChapters,
			SkipVerify:    askSkipVerify,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	})
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
