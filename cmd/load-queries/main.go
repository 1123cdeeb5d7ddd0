// Package main imports the allowed-query markdown catalog into the
// studio database.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	loadqueriescmd "github.com/hereditary-eu/obda-studio/internal/cmd/loadqueries"
	"github.com/hereditary-eu/obda-studio/internal/platform/config"
)

func main() {
	cfg, err := loadqueriescmd.ParseConfig(flag.CommandLine, os.Args[1:], os.LookupEnv)
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[LOAD-QUERIES] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loadqueriescmd.Run(ctx, cfg); err != nil {
		config.Exitf("failed to import: %v", err)
	}
}
