// minikern boots the simulated kernel and runs one user program.
//
// Usage:
//
//	minikern [-config kernel.yaml] -x test/fork
//	minikern -demo
//
// Programs are NOFF images read from the configured file system root.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"minikern/pkg/config"
	"minikern/pkg/filesys"
	"minikern/pkg/filesys/afsfs"
	"minikern/pkg/filesys/memfs"
	"minikern/pkg/kernel"
	"minikern/pkg/logging"
	"minikern/pkg/tracing"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", os.Getenv("MINIKERN_CONFIG"), "path to a YAML or JSON config file")
	program := flag.String("x", "", "program to run")
	demo := flag.Bool("demo", false, "run the built-in fork/join demo")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	logger, closer, err := logging.New(os.Stdout, cfg.Log.Path, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	var fs filesys.FileSystem
	switch {
	case *demo:
		mem := memfs.New()
		if err := mem.WriteFile(demoPath, demoProgram()); err != nil {
			log.Fatalf("Failed to install demo: %v", err)
		}
		fs = mem
		*program = demoPath
	case *program == "":
		flag.Usage()
		os.Exit(2)
	default:
		root := cfg.FileSystem.Root
		if root == "" {
			root = "."
		}
		if fs, err = afsfs.New(root); err != nil {
			log.Fatalf("Failed to open file system: %v", err)
		}
	}

	tracer := tracing.Noop()
	if cfg.Tracing.Enabled {
		if tracer, err = tracing.NewStdout("minikern", version, cfg.Tracing.Output); err != nil {
			log.Fatalf("Failed to set up tracing: %v", err)
		}
	}

	k, err := kernel.New(cfg, fs,
		kernel.WithLogger(logger),
		kernel.WithTracer(tracer),
		kernel.WithExitListener(func(pid, status int) {
			fmt.Printf("Process [%d] exits with [%d]\n", pid, status)
		}),
	)
	if err != nil {
		log.Fatalf("Failed to create kernel: %v", err)
	}

	if _, err := k.StartProcess(*program); err != nil {
		log.Fatalf("Failed to start %s: %v", *program, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	runErr := k.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := k.Shutdown(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", "error", err)
	}
	if runErr != nil {
		logger.Error("kernel interrupted", "error", runErr)
		os.Exit(1)
	}
}
