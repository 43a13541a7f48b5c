// Package main provides the libcache CLI tool for inspecting and managing the
// persisted library snapshot of a media library server.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
