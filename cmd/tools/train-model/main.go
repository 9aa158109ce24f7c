// Command train-model fits the cognitive risk forest from a CSV export and
// inspects deployed artifacts.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"disease-predictor/internal/artifact"
	"disease-predictor/internal/common/config"
	"disease-predictor/internal/common/logger"
	"disease-predictor/internal/features"
	"disease-predictor/internal/model"
	"disease-predictor/internal/training"
)

var (
	version = "v0.0.1-default"

	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to a config file; the default lookup under ./configs is used when empty",
	}
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "train-model: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "train-model",
		Version: version,
		Usage:   "Train and inspect cognitive risk model artifacts",
		Flags:   []cli.Flag{debugFlag},
		Commands: []*cli.Command{
			trainCmd,
			inspectCmd,
		},
	}
}

func newLogger(cmd *cli.Command) (logger.Logger, error) {
	level := "info"
	if cmd.Bool(debugFlag.Name) {
		level = "debug"
	}
	return logger.NewStructured(level, "console", "stderr")
}

var (
	dataFlag = &cli.StringFlag{
		Name:     "data",
		Usage:    "CSV export with one row per patient and a Diagnosis column",
		Required: true,
	}
	outFlag = &cli.StringFlag{
		Name:  "out",
		Usage: "Write the artifacts to this directory instead of the configured store",
	}
	reportFlag = &cli.StringFlag{
		Name:  "report",
		Usage: "Report file, relative to the artifact directory when the target is a file store",
		Value: "training_report.yaml",
	}
	seedFlag = &cli.IntFlag{
		Name:  "seed",
		Usage: "Seed for the split, the folds and the forest",
		Value: 42,
	}
	treesFlag = &cli.IntFlag{
		Name:  "trees",
		Usage: "Number of trees in the forest",
		Value: 100,
	}
	depthFlag = &cli.IntFlag{
		Name:  "depth",
		Usage: "Maximum tree depth, 0 for unlimited",
		Value: 10,
	}
	foldsFlag = &cli.IntFlag{
		Name:  "folds",
		Usage: "Cross validation folds on the training split",
		Value: 5,
	}
	workersFlag = &cli.IntFlag{
		Name:  "workers",
		Usage: "Trees fitted in parallel, 0 for one per CPU",
	}

	trainCmd = &cli.Command{
		Name:  "train",
		Usage: "Fit scaler and forest and publish the artifacts to the configured store",
		Flags: []cli.Flag{
			configFlag,
			dataFlag,
			outFlag,
			reportFlag,
			seedFlag,
			treesFlag,
			depthFlag,
			foldsFlag,
			workersFlag,
		},
		Action: cmdTrain,
	}

	inspectCmd = &cli.Command{
		Name:   "inspect",
		Usage:  "Load the configured artifacts and print the resolved schema",
		Flags:  []cli.Flag{configFlag},
		Action: cmdInspect,
	}
)

func cmdTrain(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ds, err := training.LoadCSV(cmd.String(dataFlag.Name))
	if err != nil {
		return err
	}
	log.Info("dataset loaded", map[string]interface{}{
		"rows":     len(ds.X),
		"features": len(ds.Columns),
	})

	opts := training.DefaultOptions()
	opts.Folds = int(cmd.Int(foldsFlag.Name))
	opts.Forest.Seed = int64(cmd.Int(seedFlag.Name))
	opts.Forest.NTrees = int(cmd.Int(treesFlag.Name))
	opts.Forest.Tree.MaxDepth = int(cmd.Int(depthFlag.Name))
	opts.Forest.Workers = int(cmd.Int(workersFlag.Name))

	res, err := training.Train(ctx, ds, opts, log)
	if err != nil {
		return fmt.Errorf("training: %w", err)
	}

	target, err := openTarget(ctx, cfg, cmd.String(outFlag.Name))
	if err != nil {
		return err
	}
	defer target.store.Close()

	if err := res.Save(ctx, target.store, artifactNames(cfg)); err != nil {
		return err
	}

	reportPath := cmd.String(reportFlag.Name)
	if target.dir != "" && !filepath.IsAbs(reportPath) {
		reportPath = filepath.Join(target.dir, reportPath)
	}
	if err := training.WriteReport(reportPath, res.Report); err != nil {
		return err
	}

	log.Info("artifacts published", map[string]interface{}{
		"backend":      target.backend,
		"dir":          target.dir,
		"report":       reportPath,
		"testAccuracy": res.Report.TestAccuracy,
		"testRocAuc":   res.Report.TestROCAUC,
	})
	return nil
}

// publishTarget is where train writes. dir is set for file stores only.
type publishTarget struct {
	store   artifact.Backend
	backend string
	dir     string
}

// openTarget opens the configured store, or a file store at out when it is set.
func openTarget(ctx context.Context, cfg *config.Config, out string) (*publishTarget, error) {
	if out != "" {
		return &publishTarget{store: artifact.NewFileStore(out), backend: "file", dir: out}, nil
	}

	store, err := artifact.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	t := &publishTarget{store: store, backend: cfg.Store.Backend}
	if cfg.Store.Backend == "file" || cfg.Store.Backend == "" {
		t.backend = "file"
		t.dir = cfg.Store.File.Dir
	}
	return t, nil
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	if path := cmd.String(configFlag.Name); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func artifactNames(cfg *config.Config) model.ArtifactNames {
	return model.ArtifactNames{
		Classifier: cfg.Model.ClassifierArtifact,
		Scaler:     cfg.Model.ScalerArtifact,
		ColumnInfo: cfg.Model.ColumnInfoArtifact,
	}
}

// inspection is what inspect prints.
type inspection struct {
	Backend        string   `yaml:"backend"`
	Format         string   `yaml:"format"`
	SchemaSource   string   `yaml:"schema_source"`
	Schema         []string `yaml:"schema"`
	ScalingColumns []string `yaml:"scaling_columns"`
	Unencoded      []string `yaml:"unencoded,omitempty"`
}

func cmdInspect(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := artifact.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(ctx, config.GetDuration(cfg.Model.LoadTimeout))
	defer cancel()

	bundle, err := model.LoadArtifacts(ctx, store, artifactNames(cfg))
	if err != nil {
		return err
	}

	table := features.NewConverter(nil).Table()
	data, err := yaml.Marshal(inspection{
		Backend:        cfg.Store.Backend,
		Format:         bundle.Format,
		SchemaSource:   string(bundle.SchemaSource),
		Schema:         bundle.Schema.Names(),
		ScalingColumns: bundle.ScalingColumns,
		Unencoded:      bundle.Unencoded(table),
	})
	if err != nil {
		return fmt.Errorf("encode inspection: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}
