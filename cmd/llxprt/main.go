// Command llxprt is a thin smoke-test CLI over the provider-dispatch
// runtime: list registered providers and their models, send one chat
// completion against the active provider, and manage persisted profiles.
// It is not an interactive terminal UI — that surface is out of scope.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
