// ABOUTME: CLI commands for exporting and importing periodize data.
// ABOUTME: Supports JSON, YAML and Markdown export; JSON and YAML import.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/periodize/internal/storage"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
	importFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export <format>",
	Short: "Export periodize data",
	Long: `Export periodize data in various formats.

FORMATS:

  json       Every record, deletions and sync flags included (backup/restore)
  yaml       Same content as json, human-readable
  markdown   The signed-in user's plans as Markdown tables

EXAMPLES:

  periodize export json -o backup.json
  periodize export yaml
  periodize export markdown > training.md`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"json", "yaml", "markdown"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error

		switch args[0] {
		case "json":
			data, err = store.ExportJSON()
		case "yaml":
			data, err = store.ExportYAML()
		case "markdown", "md":
			userID, uerr := currentUser()
			if uerr != nil {
				return uerr
			}
			var md string
			md, err = store.ExportMarkdown(userID)
			data = []byte(md)
		default:
			return fmt.Errorf("unknown format: %s (use json, yaml, or markdown)", args[0])
		}
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if exportOutput != "" {
			if err := os.WriteFile(exportOutput, data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			color.Green("✓ Exported to %s", exportOutput)
			return nil
		}
		fmt.Println(string(data))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import periodize data from JSON or YAML",
	Long: `Import records from a previous 'periodize export json' or 'export yaml'.

Records are restored exactly, including deletions and whether they still
need to sync. The format follows the file extension unless --format is set.

EXAMPLES:

  periodize import backup.json
  periodize import backup.txt --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]
		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		format := importFormat
		if format == "" {
			format = strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
		}
		var summary *storage.ImportSummary
		switch format {
		case "json":
			summary, err = store.ImportJSON(data)
		case "yaml", "yml":
			summary, err = store.ImportYAML(data)
		default:
			return fmt.Errorf("unknown import format %q (use --format json or yaml)", format)
		}
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		color.Green("✓ Imported %d record(s) from %s", summary.Total(), filename)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	importCmd.Flags().StringVar(&importFormat, "format", "", "json or yaml (default: from extension)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
