package main

import (
	"os"
)

func main() {
	// errors are printed in color by the command itself
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
