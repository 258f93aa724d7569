// Package main is the entry point for the entitysvc command.
package main

import (
	"fmt"
	"os"

	"entitysvc/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
