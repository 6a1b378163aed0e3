package main

import (
	"context"
	"fmt"
	"os"

	_ "net/http/pprof" //nolint:gosec // G108: Profiling endpoint is automatically exposed on /debug/pprof

	"github.com/pmoves-ai/pulse/internal/cmd"
)

func main() {
	rootCmd, err := cmd.NewRootCommand()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
