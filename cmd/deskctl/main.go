package main

import (
	"fmt"
	"os"

	"github.com/deskctl/deskctl/internal/apperr"
	"github.com/deskctl/deskctl/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "deskctl: %v\n", err)
		os.Exit(apperr.ExitCode(err))
	}
}
