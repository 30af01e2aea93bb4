package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Alcatecablee/fixwise-sub008/internal/batch"
	"github.com/Alcatecablee/fixwise-sub008/internal/config"
	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
	"github.com/Alcatecablee/fixwise-sub008/internal/learner"
	"github.com/Alcatecablee/fixwise-sub008/internal/logging"
	"github.com/Alcatecablee/fixwise-sub008/internal/pipeline"
	"github.com/Alcatecablee/fixwise-sub008/internal/rules"
	"github.com/Alcatecablee/fixwise-sub008/internal/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:   "fixwise",
		Short: "Rule-driven repair engine for component-based UI sources",
	}
	dbPath       string
	configPath   string
	layerFlags   []int
	dryRun       bool
	jsonOutput   bool
	verbose      bool
	applyLearned bool
	userTier     string
)

var sourceExts = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".mjs": true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "fixwise.db", "Path to the learned-rule database (SQLite)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "fixwise.yaml", "Path to the config file")
	rootCmd.PersistentFlags().IntSliceVarP(&layerFlags, "layers", "l", nil, "Layer IDs to run (default: all)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Compute fixes without writing files")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit the report as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVar(&applyLearned, "apply-learned", false, "Apply learned rules below the confidence threshold")
	rootCmd.PersistentFlags().StringVar(&userTier, "tier", "free", "Plan tier recorded on the run")

	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(watchCmd)
}

// setup builds the shared pieces: logger, config, learned-rule store, and a
// registry snapshot with persisted rules promoted in.
func setup() (*zap.Logger, *config.Config, *storage.SQLiteStore, *rules.Registry) {
	logger, err := logging.New(verbose)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if dbPath == "fixwise.db" && cfg.Store.Path != "" {
		dbPath = cfg.Store.Path
	}

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to open learned-rule store: %v", err)
	}

	registry := rules.NewRegistry()
	persisted, err := store.LoadRules(context.Background())
	if err != nil {
		log.Fatalf("Failed to load learned rules: %v", err)
	}
	if len(persisted) > 0 {
		registry, err = registry.WithLearned(persisted)
		if err != nil {
			log.Fatalf("Failed to promote learned rules: %v", err)
		}
		fmt.Printf("📚 Loaded %d learned rules.\n", len(persisted))
	}

	return logger, cfg, store, registry
}

func buildOptions(cfg *config.Config) engine.Options {
	layers := layerFlags
	if len(layers) == 0 {
		layers = cfg.Engine.EnabledLayers
	}
	return engine.Options{
		EnabledLayers:   layers,
		DryRun:          dryRun,
		Verbose:         verbose,
		BestEffort:      cfg.Engine.BestEffort,
		UserTier:        userTier,
		TimeoutPerLayer: cfg.LayerTimeout(),
		MaxGrowthRatio:  cfg.Engine.MaxGrowthRatio,
		ApplyLearned:    applyLearned || cfg.Engine.ApplyLearned,
		ApplyConfidence: cfg.Engine.ApplyConfidence,
	}
}

var fixCmd = &cobra.Command{
	Use:   "fix [files...]",
	Short: "Detect and repair defects in the given source files",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger, cfg, store, registry := setup()
		defer store.Close()
		defer logger.Sync()

		miner := learner.New(cfg.Engine.LearnThreshold, 0, logger)
		orch := pipeline.New(registry, miner, logger)
		opts := buildOptions(cfg)

		exitCode := 0
		for _, file := range args {
			text, err := os.ReadFile(file)
			if err != nil {
				log.Fatalf("Failed to read %s: %v", file, err)
			}

			run, err := orch.Run(cmd.Context(), string(text), file, opts)
			if err != nil {
				// Configuration errors abort before any file is touched.
				log.Fatalf("Invalid options: %v", err)
			}

			printRun(run)
			if !dryRun && run.FinalText != string(text) {
				if err := persistRewrite(file, string(text), run.FinalText); err != nil {
					log.Fatalf("Failed to write %s: %v", file, err)
				}
				fmt.Printf("💾 Wrote %s (backup at %s.bak)\n", file, file)
			}
			if code := exitCodeFor(run); code > exitCode {
				exitCode = code
			}
		}
		os.Exit(exitCode)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [dir]",
	Short: "Run the engine over every source file under a directory and mine learned rules",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		root := "."
		if len(args) > 0 {
			root = args[0]
		}

		logger, cfg, store, registry := setup()
		defer store.Close()
		defer logger.Sync()

		files, err := collectSources(root)
		if err != nil {
			log.Fatalf("Failed to scan %s: %v", root, err)
		}
		fmt.Printf("📂 Processing %d files under %s\n", len(files), root)

		miner := learner.New(cfg.Engine.LearnThreshold, 0, logger)
		runner := batch.NewRunner(registry, miner, cfg.Batch.Workers, logger)
		res, err := runner.Run(cmd.Context(), files, buildOptions(cfg))
		if err != nil {
			log.Fatalf("Batch failed: %v", err)
		}

		exitCode := 0
		changed := 0
		for i, run := range res.Runs {
			if jsonOutput {
				printRun(run)
			}
			if !dryRun && run.FinalText != "" {
				before, err := os.ReadFile(files[i])
				if err == nil && string(before) != run.FinalText {
					if err := persistRewrite(files[i], string(before), run.FinalText); err != nil {
						log.Fatalf("Failed to write %s: %v", files[i], err)
					}
					changed++
				}
			}
			if code := exitCodeFor(run); code > exitCode {
				exitCode = code
			}
		}
		fmt.Printf("✅ Batch complete: %d files, %d rewritten, %d rule proposals.\n",
			len(res.Runs), changed, len(res.Proposals))

		// Promotion happens here, at the batch boundary, never mid-batch.
		if len(res.Proposals) > 0 {
			if err := store.SaveRules(cmd.Context(), res.Proposals); err != nil {
				log.Fatalf("Failed to persist learned rules: %v", err)
			}
			fmt.Printf("🧠 Persisted %d learned rules for future runs.\n", len(res.Proposals))
		}
		os.Exit(exitCode)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Re-run the engine whenever a source file changes",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		root := "."
		if len(args) > 0 {
			root = args[0]
		}

		logger, cfg, store, registry := setup()
		defer store.Close()
		defer logger.Sync()

		miner := learner.New(cfg.Engine.LearnThreshold, 0, logger)
		orch := pipeline.New(registry, miner, logger)
		opts := buildOptions(cfg)
		opts.DryRun = true // watch mode only reports; it never rewrites

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			log.Fatalf("Failed to create watcher: %v", err)
		}
		defer watcher.Close()

		if err := watchTree(watcher, root); err != nil {
			log.Fatalf("Failed to watch %s: %v", root, err)
		}
		fmt.Printf("👀 Watching %s (ctrl-c to stop)\n", root)

		for {
			select {
			case <-cmd.Context().Done():
				return
			case err := <-watcher.Errors:
				logger.Warn("watcher error", zap.Error(err))
			case ev := <-watcher.Events:
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if !sourceExts[strings.ToLower(filepath.Ext(ev.Name))] {
					continue
				}
				text, err := os.ReadFile(ev.Name)
				if err != nil {
					continue
				}
				run, err := orch.Run(cmd.Context(), string(text), ev.Name, opts)
				if err != nil {
					log.Fatalf("Invalid options: %v", err)
				}
				printRun(run)
			}
		}
	},
}

func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}

func collectSources(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if sourceExts[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func skipDir(name string) bool {
	return name == "node_modules" || name == ".git" || name == "dist" || name == "build"
}

// persistRewrite backs the original up next to the file, then writes the
// repaired text.
func persistRewrite(file, before, after string) error {
	if err := os.WriteFile(file+".bak", []byte(before), 0o644); err != nil {
		return err
	}
	return os.WriteFile(file, []byte(after), 0o644)
}

func printRun(run engine.RunResult) {
	if jsonOutput {
		out, _ := json.MarshalIndent(run, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Printf("🔎 %s — %s (debt %d/%s, confidence %.2f)\n",
		run.FilePath, run.State, run.DebtScore, run.DebtBand, run.Confidence)
	for _, att := range run.Attempts {
		status := "clean"
		switch {
		case att.Failed:
			status = "failed: " + att.RevertedReason
		case att.RevertedReason != "":
			status = "reverted: " + att.RevertedReason
		case att.Applied:
			status = "applied"
		}
		fmt.Printf("  layer %d %-22s %-9s %s (%d issues)\n",
			att.LayerID, att.LayerName, att.Path, status, len(att.Issues))
	}
	for _, is := range run.Issues {
		fmt.Printf("  %s:%d:%d [%s] %s: %s\n",
			run.FilePath, is.Line, is.Column, is.Severity, is.RuleID, is.Description)
	}
}

// exitCodeFor maps a run to the process exit code: 0 for success or partial
// with no unresolved critical issues, 1 otherwise.
func exitCodeFor(run engine.RunResult) int {
	if !run.Success {
		return 1
	}
	for _, is := range run.Issues {
		if is.Severity == engine.SeverityCritical && !is.FixAvailable {
			return 1
		}
	}
	return 0
}
