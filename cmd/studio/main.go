// Package main starts the OBDA studio web service.
//
// This process owns the dataset UI, the mapping editor, and the engine
// supervisor; it is the only writer of the studio database.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	studiocmd "github.com/hereditary-eu/obda-studio/internal/cmd/studio"
)

func main() {
	cfg, err := studiocmd.ParseConfig(flag.CommandLine, os.Args[1:], os.LookupEnv)
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[STUDIO] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := studiocmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
