package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kmrl/induction/internal/fleet"
	"github.com/kmrl/induction/internal/ingest"
	"github.com/kmrl/induction/internal/ranking"
	"github.com/kmrl/induction/internal/report"
	"github.com/kmrl/induction/internal/table"
)

func rankCmd() *cobra.Command {
	var (
		weightsFlag     string
		calibrationPath string
		formatFlag      string
	)

	cmd := &cobra.Command{
		Use:   "rank FILE",
		Short: "Rank the rakes in a fleet table",
		Long: `Rank parses FILE (or stdin when FILE is "-"), scores every rake and
prints the ranked list. Rows that cannot be decoded are reported on stderr
and left out of the ranking.`,
		Example: `  induct rank tonight.csv
  induct rank tonight.csv --weights readiness=50,branding=10 --format csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := report.ParseFormat(formatFlag)
			if err != nil {
				return err
			}

			base := ranking.DefaultWeights()
			if calibrationPath != "" {
				if base, err = ranking.LoadCalibration(calibrationPath); err != nil {
					return err
				}
			}
			weights, err := ranking.ParseWeights(weightsFlag, base)
			if err != nil {
				return err
			}

			text, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			rakes, err := decodeFleet(cmd.ErrOrStderr(), text)
			if err != nil {
				return err
			}

			ranked, err := ranking.Rank(rakes, weights)
			if err != nil {
				return err
			}
			slog.Debug("ranked fleet", "rakes", len(ranked), "weights", weights.String())

			out, err := report.Export(ranked, format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVarP(&weightsFlag, "weights", "w", "", "Weight overrides, e.g. readiness=40,branding=15")
	cmd.Flags().StringVar(&calibrationPath, "calibration", "", "Calibration file (JSON) providing base weights")
	cmd.Flags().StringVarP(&formatFlag, "format", "f", string(report.FormatTable), "Output format (table, json, csv, yaml)")
	return cmd
}

// parsePreview is the output of the parse command.
type parsePreview struct {
	Headers  []string        `json:"headers"`
	Rows     []ingest.Record `json:"rows"`
	RowCount int             `json:"rowCount"`
}

func parseCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Show the headers and first rows of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative, got %d", limit)
			}

			text, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			tbl := table.Parse(text)
			headers := ingest.DedupeHeaders(tbl.Headers)
			rows := tbl.Rows
			if len(rows) > limit {
				rows = rows[:limit]
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(parsePreview{
				Headers:  headers,
				Rows:     ingest.ToRecords(tbl.Headers, rows),
				RowCount: len(tbl.Rows),
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", ingest.DefaultSampleRows, "Number of rows to show")
	return cmd
}

// readInput reads the named file, or in when name is "-".
func readInput(in io.Reader, name string) (string, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(data), nil
}

// decodeFleet parses and decodes text. Row errors are printed to stderr as
// warnings; a table-level error is returned.
func decodeFleet(stderr io.Writer, text string) ([]fleet.Rake, error) {
	tbl := table.Parse(text)
	rakes, errs := fleet.Decode(tbl.Headers, tbl.Rows)
	for _, err := range errs {
		var rowErr *fleet.RowError
		if !errors.As(err, &rowErr) {
			return nil, err
		}
		fmt.Fprintf(stderr, "warning: skipped %v\n", rowErr)
	}
	return rakes, nil
}
