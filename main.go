//go:build windows
// +build windows

package main

import (
	"fmt"
	"os"

	"github.com/chronos-imaging/chronos/cmd/chronos"
	"github.com/chronos-imaging/chronos/config"
	log "github.com/chronos-imaging/chronos/logger"
)

func main() {
	logDir, err := config.AppDataDirectory()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chronos: could not resolve log directory: %v\n", err)
		os.Exit(1)
	}

	if err, _ := log.InitLogging(logDir+`\chronos.log`, nil, false); err != nil {
		fmt.Fprintf(os.Stderr, "chronos: could not initialize logging: %v\n", err)
		os.Exit(1)
	}

	os.Exit(chronos.Execute())
}
