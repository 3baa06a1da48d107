// Package main is the entry point for the charla CLI.
//
// Usage:
//
//	charla [flags] <command> [args]
//
// Commands:
//
//	chat     - Practice Spanish in the terminal, typing or speaking
//	serve    - Run the web server (REST, WebSocket and WebRTC capture)
//	probe    - Stream a WAV file to a running server and save the reply
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/satriahrh/charla/cmd/charla/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
