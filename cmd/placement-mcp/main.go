package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/surface-preview-mcp/internal/config"
	"github.com/ironsheep/surface-preview-mcp/internal/logger"
	"github.com/ironsheep/surface-preview-mcp/internal/server"
	"github.com/ironsheep/surface-preview-mcp/internal/version"
)

func main() {
	var configPath string

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "--version" || arg == "-v" || arg == "version":
			fmt.Printf("surface-preview-mcp %s\n", version.Version)
			fmt.Printf("  Build time: %s\n", version.BuildTime)
			fmt.Printf("  Git commit: %s\n", version.GitCommit)
			return
		case arg == "--help" || arg == "-h" || arg == "help":
			printHelp()
			return
		case arg == "--config" || arg == "-c":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a file path")
				os.Exit(2)
			}
			i++
			configPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			configPath = strings.TrimPrefix(arg, "--config=")
		default:
			fmt.Fprintf(os.Stderr, "unknown argument %q (see --help)\n", arg)
			os.Exit(2)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}

	logger.WithFields(logrus.Fields{
		"version":     version.Version,
		"build_time":  version.BuildTime,
		"git_commit":  version.GitCommit,
		"config_file": configPath,
	}).Info("starting surface preview MCP server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			logger.WithError(err).Fatal("server error")
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		srv.Close()
	}
}

func printHelp() {
	fmt.Println("surface-preview-mcp - MCP server for placing 3D products on room photos")
	fmt.Println()
	fmt.Println("Usage: surface-preview-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config, -c FILE  Load configuration from a JSON or YAML file")
	fmt.Println("  --version, -v      Print version information")
	fmt.Println("  --help, -h         Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  PLACEMENT_MCP_LOG_LEVEL=debug           Log level (debug, info, warn, error)")
	fmt.Println("  PLACEMENT_MCP_CORNER_THRESHOLD=25       Corner detector threshold")
	fmt.Println("  PLACEMENT_MCP_CONVERT_QUALITY=0.8       JPEG quality for converted photos")
	fmt.Println("  PLACEMENT_MCP_MAX_DIMENSION=0           Downscale photos larger than this")
	fmt.Println("  PLACEMENT_MCP_ANALYSIS_TIMEOUT=30s      Per-image analysis deadline")
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client.")
}
