package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soc-analytics/backend/internal/filter"
	"github.com/soc-analytics/backend/internal/kpi"
	"github.com/soc-analytics/backend/internal/models"
	"github.com/soc-analytics/backend/internal/workbook"
)

type filterOutput struct {
	Vendor string                       `json:"vendor"`
	Range  models.DateRange             `json:"range"`
	Counts map[string]models.SheetCount `json:"counts"`
	KPIs   *models.KPIs                 `json:"kpis,omitempty"`
	Sheets map[string][]models.Record   `json:"sheets,omitempty"`
}

func newFilterCmd(root *rootOptions) *cobra.Command {
	var (
		vendor     string
		start      string
		end        string
		withKPIs   bool
		countsOnly bool
	)

	cmd := &cobra.Command{
		Use:   "filter FILE",
		Short: "Filter a workbook (.xlsx or .json) to a date range and print JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, ok := models.ParseVendor(vendor)
			if !ok {
				return fmt.Errorf("invalid --vendor: %q", vendor)
			}
			loc, err := root.location()
			if err != nil {
				return fmt.Errorf("invalid --tz: %w", err)
			}
			r, err := models.ParseDateRange(start, end, loc)
			if err != nil {
				return err
			}

			sheets, err := workbook.LoadFile(args[0])
			if err != nil {
				return err
			}

			f := filter.New(filter.WithLocation(loc))
			ds := &models.Dataset{ID: args[0], Vendor: v, Sheets: sheets}
			filtered := f.Dataset(ds, r)

			out := filterOutput{
				Vendor: string(v),
				Range:  r,
				Counts: filter.Counts(ds, filtered),
			}
			if !countsOnly {
				out.Sheets = filtered.Sheets
			}
			if withKPIs {
				static, err := f.Parsers().Get("meraki_static")
				if err != nil {
					return err
				}
				k := kpi.ForDataset(filtered, static)
				out.KPIs = &k
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&vendor, "vendor", "", "Vendor: edr, meraki, siem, gsuite or sonicwall (required)")
	cmd.Flags().StringVar(&start, "start", "", "First day to keep (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Last day to keep (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&withKPIs, "kpi", false, "Recompute KPIs for the filtered data")
	cmd.Flags().BoolVar(&countsOnly, "counts-only", false, "Omit the filtered rows")
	_ = cmd.MarkFlagRequired("vendor")
	return cmd
}
