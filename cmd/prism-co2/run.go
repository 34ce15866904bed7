package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/renjie/prism-co2/pkg/adapters/export"
	"github.com/renjie/prism-co2/pkg/adapters/ingest"
	"github.com/renjie/prism-co2/pkg/adapters/publish"
	"github.com/renjie/prism-co2/pkg/adapters/storage"
	"github.com/renjie/prism-co2/pkg/config"
	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/core/ports"
	"github.com/renjie/prism-co2/pkg/core/services"
)

type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func runCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "Path to the YAML config file")
		references = fs.String("references", "", "Reference table YAML (overrides config)")
		outputDir  = fs.String("out", "", "Export directory (overrides config)")
		operator   = fs.String("operator", "SYSTEM", "Operator recorded with the run")
		reprocess  = fs.Bool("reprocess", false, "Mark the run as a reprocess of historical data")
		goLogs     listFlag
		ferrybox   listFlag
	)
	fs.Var(&goLogs, "go", "GO log file (repeatable)")
	fs.Var(&ferrybox, "fb", "Ferrybox file (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, closeLog, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer closeLog()

	if len(goLogs) > 0 {
		cfg.Input.GoLogs = goLogs
	}
	if len(ferrybox) > 0 {
		cfg.Input.Ferrybox = ferrybox
	}
	if *references != "" {
		cfg.Input.References = *references
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if len(cfg.Input.GoLogs) == 0 {
		return errors.New("no GO log files given")
	}

	info := domain.RunInfo{Trigger: domain.RunTriggerManual, Operator: *operator, Prefix: cfg.Prefix}
	if *reprocess {
		info.Trigger = domain.RunTriggerReprocess
	}
	return runPipeline(domain.NewContext(ctx, info), cfg, logger)
}

func runPipeline(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	// Step 1: 加载 GO 日志
	batch, res, err := ingest.NewGoLogLoader(logger).LoadFiles(ctx, cfg.Input.GoLogs...)
	if err != nil {
		return fmt.Errorf("load GO logs: %w", err)
	}
	logger.WithFields(logrus.Fields{"success": res.Success, "skipped": res.Skipped, "failed": res.Failed}).Info("GO logs loaded")

	// Step 2: 合并 ferrybox 伴随序列
	var series *domain.CompanionSeries
	if len(cfg.Input.Ferrybox) > 0 {
		if series, res, err = ingest.NewFerryboxLoader(logger).LoadFiles(ctx, cfg.Input.Ferrybox...); err != nil {
			return fmt.Errorf("load ferrybox: %w", err)
		}
		logger.WithFields(logrus.Fields{"success": res.Success, "skipped": res.Skipped}).Info("ferrybox loaded")
	}
	if batch, err = ingest.NewJoiner(cfg.Pipeline.JoinTolerance, logger).Join(batch, series); err != nil {
		return fmt.Errorf("join ferrybox: %w", err)
	}

	// Step 3: 参考表
	var table domain.ReferenceTable
	if cfg.Input.References != "" {
		if table, err = ingest.NewReferenceLoader().LoadFile(ctx, cfg.Input.References); err != nil {
			return err
		}
	}

	// Step 4: 组装处理器
	opts := []services.ProcessorOption{
		services.WithLogger(logger),
		services.WithCheckConfigs(cfg.Pipeline.Checks),
		services.WithReferences(table),
		services.WithStandardIDs(cfg.Pipeline.Standards...),
		services.WithBridge(cfg.Pipeline.MaxBridge),
		services.WithCalibration(cfg.Calibration()),
		services.WithDerivation(cfg.Derivation()),
	}
	var exporters []ports.Exporter
	if cfg.Output.TSV {
		exporters = append(exporters, export.NewTSVExporter(cfg.Output.Dir, cfg.Prefix, logger))
	}
	if cfg.Output.Parquet {
		exporters = append(exporters, export.NewParquetExporter(cfg.Output.Dir, cfg.Prefix, logger))
	}
	opts = append(opts, services.WithExporters(exporters...))

	if cfg.Storage.SQLitePath != "" {
		repo, err := storage.Open(ctx, cfg.Storage.SQLitePath, logger)
		if err != nil {
			return err
		}
		defer repo.Close()
		opts = append(opts, services.WithRepository(repo, cfg.Storage.StoreRecords))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		pub := publish.NewKafkaPublisher(
			publish.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic),
			publish.WithPublisherLogger(logger),
		)
		defer pub.Close()
		opts = append(opts, services.WithPublisher(pub))
	}

	// Step 5: 执行
	result, err := services.NewProcessor(opts...).Process(ctx, batch)
	if err != nil {
		return err
	}
	for _, path := range result.Exports {
		fmt.Println(path)
	}
	return nil
}
