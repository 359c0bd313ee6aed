// Command socfilter filters exported SOC workbooks by date range from the
// command line.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
