package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oceanwatch/hazard-monitor/internal/app"
	"github.com/oceanwatch/hazard-monitor/internal/config"
	"github.com/oceanwatch/hazard-monitor/internal/ingest"
)

func main() {
	platform := flag.String("platform", "", "platform to ingest (twitter, instagram); empty runs all")
	timeout := flag.Duration("timeout", 30*time.Minute, "abort the run after this long")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	fmt.Println("Hazard Monitor - Ingestion Run")
	fmt.Println(strings.Repeat("=", 40))

	var results []*ingest.RunResult
	if *platform == "" {
		results = a.Ingest.RunAll(ctx)
	} else {
		res, err := a.Ingest.Run(ctx, *platform)
		if err != nil {
			a.Close()
			log.Fatalf("Ingestion failed: %v", err)
		}
		results = append(results, res)
	}

	for _, res := range results {
		printResult(res)
	}
}

func printResult(res *ingest.RunResult) {
	fmt.Printf("\n%s\n", res.Platform)
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("  Units:       %d (%d failed)\n", res.Units, res.UnitsFailed)
	fmt.Printf("  Fetched:     %d\n", res.Fetched)
	fmt.Printf("  Saved:       %d\n", res.Saved)
	fmt.Printf("  Duplicates:  %d\n", res.Duplicates)
	fmt.Printf("  No text:     %d\n", res.NoText)
	fmt.Printf("  Rejected:    %d\n", res.Rejected)
	fmt.Printf("  Errors:      %d\n", res.Errors)
	fmt.Printf("  Duration:    %s\n", res.Duration.Round(time.Millisecond))
	if res.Canceled {
		fmt.Println("  Run was canceled before all units completed")
	}
}
