// Package main provides the sheetreport command-line client for the
// spreadsheet reporting service.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "sheetreport",
	Short:         "Spreadsheet reporting client",
	Long:          "sheetreport uploads spreadsheets to the reporting service, filters and exports the data, lists agents, and runs the compare -> monthly activity -> download report chain.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configPath   string
	apiBase      string
	fileIDFlag   string
	outputFormat string
	outputDir    string
	sessionDir   string
	logLevel     string
	logFormat    string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to config file (default ./sheetreport.yaml if present)")
	pf.StringVar(&apiBase, "api-base", "", "Reporting API base URL (overrides api_base)")
	pf.StringVar(&fileIDFlag, "file-id", "", "Dataset id (default: the last uploaded dataset)")
	pf.StringVarP(&outputFormat, "format", "f", "text", "Table output format: text, csv or html")
	pf.StringVar(&outputDir, "output-dir", "", "Directory for downloaded reports (overrides output.dir)")
	pf.StringVar(&sessionDir, "session-dir", "", "Directory for the file session store (overrides session.dir)")
	pf.StringVar(&logLevel, "log-level", "", "Log level (overrides log.level)")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides log.format)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
