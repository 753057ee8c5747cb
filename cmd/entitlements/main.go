package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"entitlements/adapters/document"
	"entitlements/adapters/excel"
	"entitlements/adapters/relational"
	"entitlements/app"
	"entitlements/internal"
	"entitlements/internal/config"
	"entitlements/ports"
	"entitlements/ui"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}

	rootCmd := newRootCmd(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fail(err)
	}
}

// fail prints the error and its full trace, then exits non-zero
func fail(err error) {
	fmt.Fprintf(os.Stderr, "\n✗ Conversion failed: %v\n\n", err)
	fmt.Fprintf(os.Stderr, "%+v\n", err)
	os.Exit(1)
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "entitlements",
		Short:         "Republish an entitlements spreadsheet as a dashboard JSON document and a SQL database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.Source.File, "source", cfg.Source.File, "Spreadsheet to read (.xlsx or .csv)")
	flags.StringVar(&cfg.Source.Sheet, "sheet", cfg.Source.Sheet, "Workbook sheet (default: first sheet)")
	flags.StringVar(&cfg.Output.JSONPath, "json-output", cfg.Output.JSONPath, "JSON document output path")
	flags.StringVar(&cfg.Database.Driver, "driver", cfg.Database.Driver, "Database driver: sqlite or postgres")
	flags.StringVar(&cfg.Database.Path, "db-output", cfg.Database.Path, "SQLite database output path")
	flags.StringVar(&cfg.Database.URL, "database-url", cfg.Database.URL, "Postgres connection string")
	flags.BoolVar(&cfg.Database.Atomic, "atomic", cfg.Database.Atomic, "Build the SQLite database in a temp file and swap it in")
	flags.StringVar(&logLevel, "log-level", "", "Log level: ERROR, WARN, INFO, DEBUG, TRACE")

	rootCmd.AddCommand(
		newConvertCmd(cfg, "json", "Convert the spreadsheet to the dashboard JSON document", true, false),
		newConvertCmd(cfg, "sqlite", "Convert the spreadsheet to a SQL database for BI tools", false, true),
		newConvertCmd(cfg, "all", "Produce both the JSON document and the SQL database", true, true),
		newServeCmd(cfg),
	)
	return rootCmd
}

func newConvertCmd(cfg *config.Config, use, short string, withDocument, withDatabase bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " [source]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cfg.Source.File = args[0]
			}
			return runConvert(cmd.Context(), cfg, withDocument, withDatabase)
		},
	}
	if use == "sqlite" {
		cmd.Aliases = []string{"db"}
	}
	return cmd
}

func runConvert(ctx context.Context, cfg *config.Config, withDocument, withDatabase bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))

	var materializers []ports.Materializer
	if withDocument {
		materializers = append(materializers, document.NewWriter(cfg.Output.JSONPath, logger))
	}
	if withDatabase {
		if err := cfg.ValidateDatabase(); err != nil {
			return err
		}
		m, err := relational.NewMaterializer(relationalConfig(cfg), logger)
		if err != nil {
			return err
		}
		materializers = append(materializers, m)
	}

	fmt.Println("============================================================")
	fmt.Println("Enterprise Entitlements - Spreadsheet Converter")
	fmt.Println("============================================================")

	pipeline := app.NewPipeline(excel.NewDataReader(readerConfig(cfg), logger), logger, materializers...)
	report, err := pipeline.Run(ctx, cfg.Source.File)
	if err != nil {
		return err
	}

	report.Summary.Write(os.Stdout)
	fmt.Printf("\n✓ Conversion completed successfully in %s\n", report.Duration.Round(time.Millisecond))
	return nil
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard and the generated document over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
			gin.SetMode(cfg.Server.GinMode)
			dbCfg := relationalConfig(cfg)
			server := ui.NewServer(ui.Options{
				DocumentPath: cfg.Output.JSONPath,
				Database:     &dbCfg,
				DashboardDir: cfg.Server.DashboardDir,
			}, logger)
			return server.Start(cmd.Context(), ":"+cfg.Server.Port)
		},
	}
	cmd.Flags().StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "HTTP port")
	cmd.Flags().StringVar(&cfg.Server.DashboardDir, "dashboard", cfg.Server.DashboardDir, "Static dashboard directory")
	return cmd
}

func readerConfig(cfg *config.Config) excel.ReaderConfig {
	rc := excel.DefaultReaderConfig()
	rc.Sheet = cfg.Source.Sheet
	if len(cfg.Source.NAValues) > 0 {
		rc.NAValues = cfg.Source.NAValues
	}
	return rc
}

func relationalConfig(cfg *config.Config) relational.Config {
	return relational.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.URL,
		Atomic: cfg.Database.Atomic,
	}
}
