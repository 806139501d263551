package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/milkywaybrain/ladderlog/internal/config"
	"github.com/milkywaybrain/ladderlog/internal/initializer"
)

func main() {
	cfgPath := flag.String("config", "./config.json", "Path to JSON configuration file")
	envPath := flag.String("env", ".env", "Path to the .env file holding EMAIL, PASSWORD and PINCODE")
	flag.Parse()

	// Load environment variables from .env if present.
	if err := godotenv.Load(*envPath); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "not able to load env file %v: %v\n", *envPath, err)
		os.Exit(1)
	}

	var (
		cfg *config.Config
		err error
	)
	if _, statErr := os.Stat(*cfgPath); os.IsNotExist(statErr) {
		cfg = config.Default()
		fmt.Fprintf(os.Stderr, "config file %v not found, using defaults\n", *cfgPath)
	} else {
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	creds := config.LoadCredentials(os.Getenv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = initializer.Start(ctx, cfg, creds); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "ladderlog stopped: %v\n", err)
		os.Exit(1)
	}
}
