package cmd

import (
	"fmt"

	"github.com/dkritz/sql-server-extractor/internal/config"
	"github.com/dkritz/sql-server-extractor/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var reportCmd = &cobra.Command{
	Use:     "report",
	Short:   "Regenerate the extraction report from an existing output tree",
	Long:    `Re-scans the output directory and rewrites extraction_report.json. The filesystem is the report's source of truth, so this works without a live server connection or a prior run's in-memory state.`,
	Example: `./sql-server-extractor report --server sql01.example.com --output ./extracted`,
	RunE:    runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	// Only the server name and output directory matter here; credentials are
	// not validated because no session is opened.
	cfg := config.Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}
	if cfg.Server == "" {
		return fmt.Errorf("server is required to locate the output subtree (via --server or config file)")
	}

	rep, err := report.Generate(cfg.OutputDir, cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	path, err := report.Write(cfg.OutputDir, rep)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Printf("Report written to: %s\n", path)
	return nil
}
