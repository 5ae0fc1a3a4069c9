package command

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/audit"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/cli/output"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/service"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/infra/buildinfo"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/ledger"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/storage"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "glyph-cli",
		Usage:   "Glyph engine command-line management tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			TokenCommand(),
			BeaconCommand(),
			AuditCommand(),
			ExportCommand(),
			VersionCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Glyph data directory",
			EnvVars: []string{"GLYPH_DATA_DIR"},
			Value:   defaultDataDir(),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable verbose logging",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".glyph"
	}
	return filepath.Join(home, ".glyph")
}

// stack bundles the local services a command operates on.
type stack struct {
	store     *storage.Engine
	ledger    *ledger.Ledger
	audit     *audit.Log
	engine    *service.Engine
	registrar *service.Registrar
}

// openStack opens the data directory and wires the full service
// stack. Callers must Close it when done.
func openStack(c *cli.Context) (*stack, error) {
	dataDir := c.String("data-dir")

	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	storeCfg := storage.DefaultConfig(filepath.Join(dataDir, "data"))
	storeCfg.Logger = log
	store, err := storage.New(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := store.Recover(c.Context); err != nil {
		store.Close()
		return nil, fmt.Errorf("recover storage: %w", err)
	}

	l, err := ledger.Open(ledger.Config{
		Dir:    filepath.Join(dataDir, "ledger"),
		Logger: log,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	auditCfg := audit.DefaultConfig(filepath.Join(dataDir, "audit"))
	auditCfg.Logger = log
	auditLog, err := audit.Open(auditCfg)
	if err != nil {
		l.Close()
		store.Close()
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	validator, err := service.NewValidator(service.ValidatorConfig{})
	if err != nil {
		auditLog.Close()
		l.Close()
		store.Close()
		return nil, err
	}
	engine, err := service.NewEngine(service.EngineConfig{
		Validator: validator,
		Store:     store,
		Audit:     auditLog,
		Ledger:    l,
		Logger:    log,
	})
	if err != nil {
		auditLog.Close()
		l.Close()
		store.Close()
		return nil, err
	}
	registrar, err := service.NewRegistrar(l, auditLog, log)
	if err != nil {
		auditLog.Close()
		l.Close()
		store.Close()
		return nil, err
	}

	return &stack{
		store:     store,
		ledger:    l,
		audit:     auditLog,
		engine:    engine,
		registrar: registrar,
	}, nil
}

// Close releases the stack in reverse open order.
func (s *stack) Close() {
	s.audit.Close()
	s.ledger.Close()
	s.store.Close()
}

// formatTo renders data in the format selected by the --output flag.
func formatTo(c *cli.Context, data any) error {
	formatter := output.NewFormatter(output.Format(c.String("output")))
	return formatter.Format(c.App.Writer, data)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

// truncateID truncates long IDs for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:13] + "..."
}
