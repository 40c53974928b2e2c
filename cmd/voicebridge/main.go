// Package main is the entry point for the voicebridge CLI.
//
// Usage:
//
//	voicebridge [flags] <command> [args]
//
// Commands:
//
//	serve    - Run the relay daemon (HTTP API + WebSocket)
//	mic      - Terminal microphone demo against the upstream service
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/voicebridge/voicebridge/cmd/voicebridge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
