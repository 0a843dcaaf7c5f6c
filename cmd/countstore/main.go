// Command countstore counts sentences in the Media Cloud archive and stores
// the counts as labeled records, first through the statement layer and then
// through mapped-object sessions.
//
// Configuration comes from COUNTSTORE_* environment variables (or a .env
// file). COUNTSTORE_SEARCH_API_KEY is required.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deppfellow/countstore/internal/app"
	"github.com/deppfellow/countstore/internal/config"
	"github.com/deppfellow/countstore/internal/logger"
	"github.com/deppfellow/countstore/internal/repository"
	"github.com/deppfellow/countstore/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "countstore: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.Logging, cfg.Primary.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := a.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}()

	repos, err := repository.NewRepositories(a)
	if err != nil {
		return err
	}

	services, err := service.NewServices(a, repos)
	if err != nil {
		return err
	}

	s := &script{
		app:      a,
		repos:    repos,
		services: services,
		out:      os.Stdout,
	}

	return s.run(ctx)
}
