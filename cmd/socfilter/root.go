package main

import (
	"time"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	timezone string
}

func (o *rootOptions) location() (*time.Location, error) {
	if o.timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(o.timezone)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "socfilter",
		Short:         "Date-range filtering and KPI tools for SOC tool exports",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.timezone, "tz", "", "IANA time zone for calendar days (default UTC)")
	cmd.AddCommand(newFilterCmd(opts))
	cmd.AddCommand(newParseCmd(opts))
	return cmd
}
