package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/soc-analytics/backend/internal/parser"
)

func newParseCmd(root *rootOptions) *cobra.Command {
	var vendor string

	cmd := &cobra.Command{
		Use:   "parse VALUE...",
		Short: "Parse raw date values with a vendor's parser",
		Long:  "Prints one RFC 3339 timestamp per value. Exits non-zero if any value does not parse.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := root.location()
			if err != nil {
				return fmt.Errorf("invalid --tz: %w", err)
			}
			p, err := parser.NewRegistry(loc).ForVendor(vendor)
			if err != nil {
				return err
			}

			failed := 0
			for _, raw := range args {
				t := p.Parse(raw)
				if t.IsZero() {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%q: not a %s date\n", raw, p.Name())
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), t.Format(time.RFC3339Nano))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d values did not parse", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&vendor, "vendor", "", "Vendor or parser name, e.g. edr, siem, meraki_time (required)")
	_ = cmd.MarkFlagRequired("vendor")
	return cmd
}
