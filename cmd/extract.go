package cmd

import (
	"fmt"

	"github.com/dkritz/sql-server-extractor/internal/catalog"
	"github.com/dkritz/sql-server-extractor/internal/database"
	"github.com/dkritz/sql-server-extractor/internal/extract"
	"github.com/dkritz/sql-server-extractor/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var extractCmd = &cobra.Command{
	Use:     "extract",
	Short:   "Extract all table, view, and stored procedure definitions",
	Long:    `Connects to the server, enumerates every user database, writes one .sql artifact per schema object, and finishes with a JSON extraction report. Individual object failures are logged and never abort the run.`,
	Example: `./sql-server-extractor extract --server sql01.example.com --username sa --password secret --output ./extracted`,
	RunE:    runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()

	logger.Info("connecting to SQL Server", zap.String("server", cfg.Server))
	db, err := database.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to SQL Server", zap.Error(err))
		return err
	}
	defer db.Close()
	logger.Info("successfully connected to SQL Server")

	writer := extract.NewWriter(cfg.OutputDir, cfg.Server)
	orch := extract.NewOrchestrator(
		catalog.NewReader(db),
		extract.NewResolver(db, logger),
		writer,
		logger,
	)

	stats, err := orch.Run(ctx)
	if err != nil {
		logger.Error("extraction failed", zap.Error(err))
		return fmt.Errorf("extraction failed: %w", err)
	}
	logger.Info("extraction completed",
		zap.Int("databases", stats.Databases),
		zap.Int("objects", stats.Objects),
		zap.Int("unavailable", stats.Unavailable),
		zap.Int("write_failures", stats.WriteFailures))

	rep, err := report.Generate(cfg.OutputDir, cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	path, err := report.Write(cfg.OutputDir, rep)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logger.Info("report generated", zap.String("path", path))
	fmt.Printf("Extraction complete. Report written to: %s\n", path)
	return nil
}
