package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/detection"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/mapping"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/tabular"
)

type detectOutput struct {
	File             string                    `json:"file"`
	Rows             int                       `json:"rows"`
	HeaderRowIndex   int                       `json:"headerRowIndex"`
	HeaderCandidates []tabular.HeaderCandidate `json:"headerCandidates"`
	Columns          []domain.DetectedColumn   `json:"columns"`
	Resolution       mapping.Resolution        `json:"resolution"`
	Readiness        mapping.Readiness         `json:"readiness"`
}

func newDetectCmd(opts *rootOptions) *cobra.Command {
	var (
		headerRow int
		sheet     string
	)

	cmd := &cobra.Command{
		Use:   "detect <file>",
		Short: "Print detected columns and the suggested mapping for a CSV or XLSX file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			path := args[0]
			payload, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			parseOpts := tabular.Options{Sheet: sheet}
			if cmd.Flags().Changed("header-row") {
				parseOpts.HeaderRowIndex = &headerRow
			}
			parsed, err := tabular.Parse(filepath.Base(path), payload, parseOpts)
			if err != nil {
				return err
			}

			columns := detection.NewDetector(cfg.Import.SampleSize).Detect(parsed.Table)
			resolution := mapping.NewResolver(cfg.Import.AutoApplyThreshold).Resolve(columns, nil, nil)

			return writeJSON(cmd.OutOrStdout(), detectOutput{
				File:             filepath.Base(path),
				Rows:             len(parsed.Table.Rows),
				HeaderRowIndex:   parsed.HeaderRowIndex,
				HeaderCandidates: parsed.HeaderCandidates,
				Columns:          columns,
				Resolution:       resolution,
				Readiness:        mapping.CheckReadiness(resolution.Mapping, domain.MatchAuto),
			})
		},
	}
	cmd.Flags().IntVar(&headerRow, "header-row", 0, "Zero-based index of the header row (default: auto)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Worksheet name for XLSX files (default: first sheet)")
	return cmd
}
