package cmd

import (
	"github.com/dkritz/sql-server-extractor/internal/config"
	"github.com/dkritz/sql-server-extractor/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sql-server-extractor",
	Short: "Extract SQL Server schema objects into a versionable file tree",
	Long: `sql-server-extractor connects to a SQL Server instance, enumerates every
user database, and extracts table DDLs, view definitions, and stored
procedure definitions into a folder structure organized by server, object
type, and database. After each run it writes a JSON report counting the
artifacts that actually landed on disk.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves the effective configuration after cobra has parsed
// flags and viper has read the config file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Config{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ./config.json)")
	rootCmd.PersistentFlags().String("server", "", "SQL Server host name or address")
	rootCmd.PersistentFlags().Int("port", 1433, "SQL Server port")
	rootCmd.PersistentFlags().String("username", "", "SQL Server username")
	rootCmd.PersistentFlags().String("password", "", "SQL Server password")
	rootCmd.PersistentFlags().String("output", "sql_extracted_objects", "Output directory for extracted objects")
	rootCmd.PersistentFlags().Bool("trust-cert", true, "Trust the server certificate")
	rootCmd.PersistentFlags().String("cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (enables the Cloud SQL connector)")
	rootCmd.PersistentFlags().Bool("cloudsql-use-private-ip", false, "Use private IP for the Cloud SQL connection")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "sql_extractor.log", "Log file path (empty disables file logging)")

	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("username", rootCmd.PersistentFlags().Lookup("username"))
	viper.BindPFlag("password", rootCmd.PersistentFlags().Lookup("password"))
	viper.BindPFlag("output_dir", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("trust_cert", rootCmd.PersistentFlags().Lookup("trust-cert"))
	viper.BindPFlag("cloudsql_instance_connection_name", rootCmd.PersistentFlags().Lookup("cloudsql-instance-connection-name"))
	viper.BindPFlag("cloudsql_use_private_ip", rootCmd.PersistentFlags().Lookup("cloudsql-use-private-ip"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(reportCmd)
}

// initConfig reads in the config file and matching environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("SQLEXTRACT")
	viper.AutomaticEnv()

	// Absence of a config file is fine; flags and env cover everything.
	_ = viper.ReadInConfig()
}
