package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/vladislavdragonenkov/loja/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envDSN         = "LOJA_POSTGRES_DSN"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp описывает CLI: up | down | status.
func newApp(out io.Writer) *cli.App {
	dsnFlag := &cli.StringFlag{
		Name:    "dsn",
		Usage:   "PostgreSQL DSN",
		EnvVars: []string{envDSN},
	}
	stepsFlag := &cli.IntFlag{
		Name:  "steps",
		Usage: "number of migrations to apply/rollback (0=all for up, 1 for down)",
	}

	return &cli.App{
		Name:      "migrate",
		Usage:     "apply embedded schema migrations of loja",
		Writer:    out,
		ErrWriter: out,
		// Код выхода выставляет main.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags:          []cli.Flag{dsnFlag},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply pending migrations",
				Flags: []cli.Flag{stepsFlag},
				Action: func(c *cli.Context) error {
					return withStore(c, func(ctx context.Context, store *postgres.Store) error {
						if err := store.MigrateUp(ctx, c.Int("steps")); err != nil {
							return fmt.Errorf("migrate up failed: %w", err)
						}
						return printStatus(ctx, out, store, "migrate up ok")
					})
				},
			},
			{
				Name:  "down",
				Usage: "rollback applied migrations",
				Flags: []cli.Flag{stepsFlag},
				Action: func(c *cli.Context) error {
					return withStore(c, func(ctx context.Context, store *postgres.Store) error {
						if err := store.MigrateDown(ctx, c.Int("steps")); err != nil {
							return fmt.Errorf("migrate down failed: %w", err)
						}
						return printStatus(ctx, out, store, "migrate down ok")
					})
				},
			},
			{
				Name:  "status",
				Usage: "print current schema version",
				Action: func(c *cli.Context) error {
					return withStore(c, func(ctx context.Context, store *postgres.Store) error {
						return printStatus(ctx, out, store, "migration status")
					})
				},
			},
		},
	}
}

func withStore(c *cli.Context, fn func(ctx context.Context, store *postgres.Store) error) error {
	dsn := strings.TrimSpace(c.String("dsn"))
	if dsn == "" {
		return fmt.Errorf("%s (or --dsn) is required", envDSN)
	}

	ctx, cancel := context.WithTimeout(c.Context, defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	return fn(ctx, store)
}

func printStatus(ctx context.Context, out io.Writer, store *postgres.Store, prefix string) error {
	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s: version=%d applied=%d pending=%d\n", prefix, state.Version, state.Applied, state.Pending())
	return err
}
