package main

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maskline/numsync/internal/model"
)

var importCSVPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-load local numbers from a CSV file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f, err := os.Open(importCSVPath)
		if err != nil {
			return eris.Wrap(err, "open csv")
		}
		defer f.Close() //nolint:errcheck

		numbers, err := readNumbersCSV(f)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		n, err := st.BulkInsertNumbers(ctx, numbers)
		if err != nil {
			return err
		}
		zap.L().Info("import complete",
			zap.Int64("inserted", n),
			zap.String("csv", importCSVPath),
		)
		return nil
	},
}

// readNumbersCSV parses a CSV with a header row. The "number" column
// is required; "country_code", "enabled" and "service_sid" are
// optional. Enabled defaults to true when the column is absent or
// empty.
func readNumbersCSV(r io.Reader) ([]model.Number, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read csv header")
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	numberCol, ok := cols["number"]
	if !ok {
		return nil, eris.New("csv is missing the number column")
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var numbers []model.Number
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "read csv line %d", line)
		}
		if row[numberCol] == "" {
			return nil, eris.Errorf("csv line %d: empty number", line)
		}

		enabled := true
		if raw := field(row, "enabled"); raw != "" {
			enabled, err = strconv.ParseBool(raw)
			if err != nil {
				return nil, eris.Wrapf(err, "csv line %d: enabled", line)
			}
		}
		numbers = append(numbers, model.Number{
			Number:      row[numberCol],
			CountryCode: field(row, "country_code"),
			Enabled:     enabled,
			ServiceSID:  field(row, "service_sid"),
		})
	}
	return numbers, nil
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}
