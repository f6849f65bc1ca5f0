package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/gridsage/gridsage/internal/adapter/csvstore"
	"github.com/gridsage/gridsage/internal/adapter/openai"
	"github.com/gridsage/gridsage/internal/adapter/ristretto"
	"github.com/gridsage/gridsage/internal/config"
	"github.com/gridsage/gridsage/internal/logger"
	"github.com/gridsage/gridsage/internal/resilience"
	"github.com/gridsage/gridsage/internal/service"
)

// runChat starts an interactive terminal session against the agent, wired
// in-process with no HTTP server, persistence, or event publishing.
func runChat() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// Keep the terminal clean; only warnings and errors surface.
	cfg.Logging.Level = "warn"
	log, logClose := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logClose.Close()

	if cfg.Reasoner.APIKey == "" {
		key, err := promptAPIKey()
		if err != nil {
			return err
		}
		cfg.Reasoner.APIKey = key
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := ristretto.New(cfg.Cache.MaxSizeMB)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	loader := csvstore.NewCached(csvstore.New(cfg.Storage), cache, cfg.Storage.CacheTTL)
	tools := service.NewToolRegistry(loader)
	sessions := service.NewSessionManager(nil, cfg.Session.TTL)
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	agent := service.NewAgentService(openai.NewClient(cfg.Reasoner), tools, loader, sessions, breaker, cfg.Agent)

	fmt.Println("GridSage — ask about your energy usage. Type \"exit\" to quit.")

	var sessionID string
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			return nil
		}

		res, err := agent.ProcessQuery(ctx, text, sessionID)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Println()
				return nil
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		sessionID = res.SessionID
		fmt.Printf("gridsage> %s\n", res.Answer)
	}
}

// promptAPIKey reads the reasoner API key without echoing it. Falls back to a
// plain line read when stdin is not a terminal (piped input).
func promptAPIKey() (string, error) {
	fmt.Fprint(os.Stderr, "OpenAI API key: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		key, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read api key: %w", err)
		}
		return strings.TrimSpace(string(key)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read api key: %w", err)
	}
	return strings.TrimSpace(line), nil
}
