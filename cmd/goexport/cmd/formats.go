package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goexport/internal/config"
	"github.com/dbsmedya/goexport/internal/format"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the supported output file formats",
	Long: `Formats lists every file format an export can write, with the file
extensions that select it.

Example:
  goexport formats`,
	RunE: runFormats,
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(cmd *cobra.Command, args []string) error {
	factory := format.NewFactory(config.DefaultConfig().Formats)

	var rows [][]string
	for _, d := range factory.Formats() {
		rows = append(rows, []string{d.Name, strings.Join(d.Extensions, " "), d.MimeType, d.Description})
	}
	printTable(cmd.OutOrStdout(), []string{"Format", "Extensions", "MIME type", "Description"}, rows)
	return nil
}
