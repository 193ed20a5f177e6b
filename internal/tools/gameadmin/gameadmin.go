// Package gameadmin implements the delve-admin command: catalog seeding,
// store statistics, checkpoint retention, and camp transfer between
// installations.
package gameadmin

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/hollowspire/delve/internal/catalog"
	"github.com/hollowspire/delve/internal/checkpoint"
	"github.com/hollowspire/delve/internal/domain/entity"
	"github.com/hollowspire/delve/internal/storage/flatkv"
	"github.com/hollowspire/delve/internal/storage/sqlite"
	"github.com/hollowspire/delve/internal/telemetry"
)

// Config holds admin command configuration. Exactly one operation flag must
// be set per invocation.
type Config struct {
	GameDBPath string        `env:"DELVE_GAME_DB_PATH"`
	FlatDBPath string        `env:"DELVE_FLAT_DB_PATH"`
	Timeout    time.Duration `env:"DELVE_ADMIN_TIMEOUT" envDefault:"10m"`

	Seed      bool
	ForceSeed bool

	Stats      bool
	JSONOutput bool

	CleanupCamps  bool
	RetentionDays int `env:"DELVE_CAMP_RETENTION_DAYS" envDefault:"30"`

	ExportCampID string
	OutPath      string

	ImportPath string
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.GameDBPath == "" {
		cfg.GameDBPath = filepath.Join("data", "game.sqlite")
	}
	if cfg.FlatDBPath == "" {
		cfg.FlatDBPath = filepath.Join("data", "flat.db")
	}

	fs.StringVar(&cfg.GameDBPath, "game-db-path", cfg.GameDBPath, "path to the game sqlite database (default: DELVE_GAME_DB_PATH or data/game.sqlite)")
	fs.StringVar(&cfg.FlatDBPath, "flat-db-path", cfg.FlatDBPath, "path to the flat key-value database (default: DELVE_FLAT_DB_PATH or data/flat.db)")
	fs.BoolVar(&cfg.Seed, "seed", false, "seed the entity catalog from the bundled descriptors")
	fs.BoolVar(&cfg.ForceSeed, "force", false, "re-seed even when the stored catalog version matches")
	fs.BoolVar(&cfg.Stats, "stats", false, "report store statistics")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.BoolVar(&cfg.CleanupCamps, "cleanup-camps", false, "delete camps older than the retention window")
	fs.IntVar(&cfg.RetentionDays, "max-age-days", cfg.RetentionDays, "camp retention window in days (default: DELVE_CAMP_RETENTION_DAYS or 30)")
	fs.StringVar(&cfg.ExportCampID, "export-camp", "", "camp ID to export as JSON")
	fs.StringVar(&cfg.OutPath, "out", "", "output file for -export-camp (default: stdout)")
	fs.StringVar(&cfg.ImportPath, "import-camp", "", "camp JSON file to import under a fresh camp ID")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func operationCount(cfg Config) int {
	count := 0
	for _, set := range []bool{
		cfg.Seed,
		cfg.Stats,
		cfg.CleanupCamps,
		cfg.ExportCampID != "",
		cfg.ImportPath != "",
	} {
		if set {
			count++
		}
	}
	return count
}

// Run executes the admin command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	switch operationCount(cfg) {
	case 0:
		return errors.New("one of -seed, -stats, -cleanup-camps, -export-camp or -import-camp is required")
	case 1:
	default:
		return errors.New("operation flags cannot be combined")
	}
	if cfg.ForceSeed && !cfg.Seed {
		return errors.New("-force requires -seed")
	}
	if cfg.OutPath != "" && cfg.ExportCampID == "" {
		return errors.New("-out requires -export-camp")
	}
	if cfg.CleanupCamps && cfg.RetentionDays <= 0 {
		return errors.New("-max-age-days must be > 0")
	}

	store, err := sqlite.Open(cfg.GameDBPath)
	if err != nil {
		return fmt.Errorf("open game store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(errOut, "Error: close game store: %v\n", closeErr)
		}
	}()

	switch {
	case cfg.Seed:
		return runSeed(ctx, store, cfg.ForceSeed, out)
	case cfg.Stats:
		return runStats(ctx, store, cfg.JSONOutput, out)
	}

	// The remaining operations work on checkpoints and need the legacy flat
	// store alongside the primary one.
	flat, err := flatkv.Open(cfg.FlatDBPath)
	if err != nil {
		return fmt.Errorf("open flat store: %w", err)
	}
	defer func() {
		if closeErr := flat.Close(); closeErr != nil {
			fmt.Fprintf(errOut, "Error: close flat store: %v\n", closeErr)
		}
	}()

	checkpoints, err := checkpoint.NewService(checkpoint.Config{
		Camps:      store,
		Characters: store,
		Parties:    store,
		Dungeons:   store,
		Positions:  store,
		Legacy:     flat,
		Audit:      telemetry.NewEmitter(store),
	})
	if err != nil {
		return fmt.Errorf("build checkpoint service: %w", err)
	}

	switch {
	case cfg.CleanupCamps:
		return runCleanupCamps(ctx, checkpoints, cfg.RetentionDays, out)
	case cfg.ExportCampID != "":
		return runExportCamp(ctx, checkpoints, cfg.ExportCampID, cfg.OutPath, out)
	case cfg.ImportPath != "":
		return runImportCamp(ctx, checkpoints, cfg.ImportPath, out)
	}
	return nil
}

func runSeed(ctx context.Context, store *sqlite.Store, force bool, out io.Writer) error {
	loader := catalog.NewLoader(store)

	needs, err := loader.NeedsUpdate(ctx)
	if err != nil {
		return err
	}
	if !needs && !force {
		fmt.Fprintf(out, "catalog already at version %s\n", catalog.Version)
		return nil
	}

	if err := loader.LoadAll(ctx, force); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	for _, kind := range entity.AllKinds() {
		count, err := store.CountEntities(ctx, kind)
		if err != nil {
			return fmt.Errorf("count %s: %w", kind, err)
		}
		fmt.Fprintf(out, "%s: %d\n", kind, count)
	}
	fmt.Fprintf(out, "catalog seeded at version %s\n", catalog.Version)
	return nil
}

func runStats(ctx context.Context, store *sqlite.Store, jsonOutput bool, out io.Writer) error {
	stats, err := store.GetGameStatistics(ctx)
	if err != nil {
		return fmt.Errorf("read statistics: %w", err)
	}
	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	}
	fmt.Fprintf(out, "characters: %d\n", stats.CharacterCount)
	fmt.Fprintf(out, "parties:    %d\n", stats.PartyCount)
	fmt.Fprintf(out, "camps:      %d\n", stats.CampCount)
	fmt.Fprintf(out, "dungeons:   %d\n", stats.DungeonCount)
	fmt.Fprintf(out, "catalog:    %d\n", stats.EntityCount)
	return nil
}

func runCleanupCamps(ctx context.Context, checkpoints *checkpoint.Service, maxAgeDays int, out io.Writer) error {
	removed, err := checkpoints.CleanupOldCamps(ctx, maxAgeDays)
	if err != nil {
		return fmt.Errorf("cleanup camps: %w", err)
	}
	fmt.Fprintf(out, "removed %d camps older than %d days\n", removed, maxAgeDays)
	return nil
}

func runExportCamp(ctx context.Context, checkpoints *checkpoint.Service, campID, outPath string, out io.Writer) error {
	payload, err := checkpoints.ExportCamp(ctx, campID)
	if err != nil {
		return fmt.Errorf("export camp %s: %w", campID, err)
	}
	if outPath == "" {
		fmt.Fprintln(out, string(payload))
		return nil
	}
	if err := os.WriteFile(outPath, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(out, "exported camp %s to %s\n", campID, outPath)
	return nil
}

func runImportCamp(ctx context.Context, checkpoints *checkpoint.Service, path string, out io.Writer) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("import path is required")
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read import: %w", err)
	}
	result := checkpoints.ImportCamp(ctx, payload)
	if !result.Success {
		if result.Err != nil {
			return fmt.Errorf("%s: %w", result.Message, result.Err)
		}
		return errors.New(result.Message)
	}
	fmt.Fprintf(out, "imported camp as %s\n", result.CampID)
	return nil
}
