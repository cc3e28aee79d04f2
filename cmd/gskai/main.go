// Command gskai is the entry point for the Genskey literature assistant.
// It ingests scientific publications into a vector store and answers
// questions about them with task-routed LLM generation, either from the
// command line or through an HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/genskey/gskai-go/cmd/gskai/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
