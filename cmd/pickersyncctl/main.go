// Command pickersyncctl is a CLI front-end over the picker sync
// controller: sync local and cloud media, switch the active cloud
// provider, reset local state, and dump diagnostics.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitOnError(err)
	}
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
