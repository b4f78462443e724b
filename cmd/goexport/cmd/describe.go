package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goexport/internal/format"
	"github.com/dbsmedya/goexport/internal/schema"
)

var (
	describeTable    string
	describeSchema   string
	describeDatabase string
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Show the columns of a source table and their FITS mapping",
	Long: `Describe lists the columns of a table in the source database with
their SQL type and the FITS binary table column each one is written as.

Example:
  goexport describe --config exporter.yaml --table TestData --schema dbo`,
	RunE: runDescribe,
}

func init() {
	describeCmd.Flags().StringVarP(&describeTable, "table", "t", "",
		"Table name (required)")
	describeCmd.MarkFlagRequired("table")
	describeCmd.Flags().StringVar(&describeSchema, "schema", "",
		"Schema name (default: dialect default schema)")
	describeCmd.Flags().StringVar(&describeDatabase, "database", "",
		"Database name (default: source database)")

	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	dbManager, ds, err := connectSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer dbManager.Close()

	ref := ds.Table(describeDatabase, describeSchema, describeTable)
	cols, err := ds.Columns(ctx, ref)
	if err != nil {
		return err
	}
	count, err := ds.CountRows(ctx, ref)
	if err != nil {
		return err
	}

	list := make([]schema.Column, 0, cols.Len())
	for el := cols.Front(); el != nil; el = el.Next() {
		list = append(list, el.Value)
	}
	fits := format.FitsColumns(list, cfg.Formats.FITS.MaxStringWidth)

	rows := make([][]string, len(list))
	for i, col := range list {
		tform := fits[i].TForm()
		if fits[i].Fallback {
			tform += " (text)"
		}
		rows[i] = []string{
			strconv.Itoa(col.Ordinal),
			col.Name,
			columnType(col),
			strconv.FormatBool(col.Nullable),
			tform,
		}
	}

	out := cmd.OutOrStdout()
	printHeader(out, fmt.Sprintf("Table: %s", ref))
	cmd.Printf("Rows: %d\n\n", count)
	printTable(out, []string{"#", "Column", "Type", "Nullable", "FITS"}, rows)
	return nil
}

func columnType(col schema.Column) string {
	switch {
	case col.HasLength:
		return fmt.Sprintf("%s(%d)", col.DataType, col.Length)
	case col.Precision > 0:
		return fmt.Sprintf("%s(%d,%d)", col.DataType, col.Precision, col.Scale)
	default:
		return col.DataType
	}
}
