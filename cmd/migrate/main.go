package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/Duell10111/artemis-exam-agent/internal/config"
	"github.com/Duell10111/artemis-exam-agent/internal/logger"
	"github.com/Duell10111/artemis-exam-agent/migrations"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(2)
	}
	if cfg.MirrorDriver != config.MirrorDriverPostgres {
		log.Fatal().Str("driver", string(cfg.MirrorDriver)).Msg("MIRROR_DRIVER must be postgres")
	}
	if cfg.MirrorDSN == "" {
		log.Fatal().Msg("MIRROR_DSN is not set")
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read embedded migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.MirrorDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to mirror database")
	}
	defer m.Close()

	if err := run(m, flag.Args(), log); err != nil {
		log.Fatal().Err(err).Str("command", flag.Arg(0)).Msg("Migration failed")
	}
}

func run(m *migrate.Migrate, args []string, log zerolog.Logger) error {
	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	case "force":
		if len(args) < 2 {
			return errors.New("force requires a version")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := m.Force(v); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info().Msg("Mirror schema is empty")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Mirror schema version")
	return nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate <up|down|version|force VERSION>")
	fmt.Fprintln(os.Stderr, "Creates the exam mirror tables in the postgres database at MIRROR_DSN.")
	fmt.Fprintln(os.Stderr, "Run it before starting the agent with MIRROR_DRIVER=postgres.")
}
