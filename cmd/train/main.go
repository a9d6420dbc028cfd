package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"riskscan/internal/client"
	"riskscan/internal/config"
	"riskscan/internal/logging"
	"riskscan/internal/repository"
	"riskscan/internal/scorer"
	"riskscan/internal/textproc"
	"riskscan/internal/training"
	"riskscan/internal/vectorizer"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the text risk model",
	Long: `Train the TF-IDF + logistic regression model from a labeled CSV corpus
and write the vectorizer and scorer artifacts to the model directory.

Examples:
  train                                    # Use configs/config.yml
  train --data corpus.csv --model-dir out  # Override paths
  train --reload-url http://localhost:8000 # Hot-reload a running server
  train runs --limit 5                     # Show recent training runs`,
	SilenceUsage: true,
	RunE:         runTrain,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded training runs",
	RunE:  runRuns,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default: $RISKSCAN_CONFIG or configs/config.yml)")

	rootCmd.Flags().String("data", "", "Training CSV path")
	rootCmd.Flags().String("model-dir", "", "Artifact output directory")
	rootCmd.Flags().String("positive-class", "", "Class label treated as positive")
	rootCmd.Flags().Uint64("seed", 0, "Split seed")
	rootCmd.Flags().Float64("test-size", 0, "Held-out fraction")
	rootCmd.Flags().Bool("no-ledger", false, "Do not record the run in the training ledger")
	rootCmd.Flags().String("reload-url", "", "Base URL of a running server to reload after training")

	runsCmd.Flags().Int("limit", 20, "Maximum runs to show")
	rootCmd.AddCommand(runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	flags := cmd.Flags()
	if v, _ := flags.GetString("data"); v != "" {
		cfg.Training.DataPath = v
	}
	if v, _ := flags.GetString("model-dir"); v != "" {
		cfg.Model.Dir = v
	}
	if v, _ := flags.GetString("positive-class"); v != "" {
		cfg.Training.PositiveClass = v
	}
	if flags.Changed("seed") {
		cfg.Training.Seed, _ = flags.GetUint64("seed")
	}
	if v, _ := flags.GetFloat64("test-size"); v != 0 {
		cfg.Training.TestSize = v
	}

	var recorder training.RunRecorder
	if noLedger, _ := flags.GetBool("no-ledger"); !noLedger {
		repo, err := repository.NewTrainingRepository(cfg.Database.Path, logger)
		if err != nil {
			logger.Warn("Training ledger unavailable, run will not be recorded", zap.Error(err))
		} else {
			defer repo.Close()
			recorder = repo
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t := cfg.Training
	trainer := training.NewTrainer(textproc.NewNormalizer(), recorder, logger)
	report, err := trainer.Run(ctx, training.Config{
		DataPath:      t.DataPath,
		Schema:        training.Schema{TextColumn: t.TextColumn, ClassColumn: t.ClassColumn},
		PositiveClass: t.PositiveClass,
		NegativeClass: t.NegativeClass,
		TestFraction:  t.TestSize,
		Seed:          t.Seed,
		ModelDir:      cfg.Model.Dir,
		Vectorizer: vectorizer.Options{
			MaxFeatures: t.MaxFeatures,
			NGramMin:    t.NGramMin,
			NGramMax:    t.NGramMax,
		},
		Scorer: scorer.Options{
			C:             t.C,
			MaxIterations: t.MaxIterations,
		},
	})
	if err != nil {
		logger.Error("Training failed", zap.Error(err))
		return err
	}

	fmt.Printf("Run %s\n", report.RunID)
	fmt.Printf("Samples: %d total, %d train, %d test\n", report.TotalSamples, report.TrainSamples, report.TestSamples)
	fmt.Printf("Vocabulary: %d terms\n", report.VocabularySize)
	fmt.Printf("Accuracy: %.4f\n\n", report.Evaluation.Accuracy)
	fmt.Println(report.Evaluation.String())
	fmt.Printf("Artifacts written to %s\n", cfg.Model.Dir)

	if url, _ := flags.GetString("reload-url"); url != "" {
		info, err := client.NewClient(url).Reload(ctx)
		if err != nil {
			return fmt.Errorf("reload %s: %w", url, err)
		}
		if info != nil {
			fmt.Printf("Server at %s now serving %.12s\n", url, info.Fingerprint)
		}
	}
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	limit, _ := cmd.Flags().GetInt("limit")

	repo, err := repository.NewTrainingRepository(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("open training ledger: %w", err)
	}
	defer repo.Close()

	runs, err := repo.ListRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No training runs recorded.")
		return nil
	}

	fmt.Printf("%-36s  %-19s  %-8s  %-7s  %-8s  %-12s  %s\n",
		"ID", "Completed", "Samples", "Vocab", "Accuracy", "Fingerprint", "Dataset")
	fmt.Println(strings.Repeat("─", 120))

	for _, r := range runs {
		fp := r.Fingerprint
		if len(fp) > 12 {
			fp = fp[:12]
		}
		fmt.Printf("%-36s  %-19s  %-8d  %-7d  %-8.4f  %-12s  %s\n",
			r.ID,
			r.CompletedAt.Local().Format("2006-01-02 15:04:05"),
			r.TotalSamples,
			r.VocabularySize,
			r.Accuracy,
			fp,
			r.DatasetPath,
		)
	}
	return nil
}
