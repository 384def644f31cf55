// Shared helpers for semid CLI commands.
// Implements: prd011-semid-cli (R3, R8).
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/mesh-intelligence/semid/pkg/semid"
)

// engineHandle bundles an attached engine with the directories it was
// opened against, for command output.
type engineHandle struct {
	*semid.Engine
	configDir string
	dataDir   string
}

// openEngine resolves directories, loads the configuration, and attaches
// the engine. The caller must defer a Close.
func openEngine() (*engineHandle, error) {
	configDir, err := resolveConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return nil, err
	}
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	eng, err := semid.New(engineConfig(v, dataDir), logger)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	return &engineHandle{Engine: eng, configDir: configDir, dataDir: dataDir}, nil
}

// parseIDArgs parses positional surrogate-ID arguments.
func parseIDArgs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q (expected a positive integer)", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
