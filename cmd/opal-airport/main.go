// Command opal-airport serves an Opal server to DuckDB over Arrow Flight
// and browses its relational catalog from the terminal.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
