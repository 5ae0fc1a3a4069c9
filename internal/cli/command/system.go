package command

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/service"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/infra/buildinfo"
)

// AuditCommand returns the audit subcommand group.
func AuditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Inspect the audit trail",
		Subcommands: []*cli.Command{
			{
				Name:  "report",
				Usage: "Query audit entries",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "operation",
						Usage: "Filter by operation (create, mutate, forget, register, ...)",
					},
					&cli.StringFlag{
						Name:  "outcome",
						Usage: "Filter by outcome (accepted, rejected)",
					},
					&cli.StringFlag{
						Name:  "target",
						Usage: "Filter by target ID",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Value:   50,
						Usage:   "Maximum entries to return, 0 for all",
					},
				},
				Action: auditReport,
			},
			{
				Name:   "verify",
				Usage:  "Verify the audit log hash chain",
				Action: auditVerify,
			},
		},
	}
}

func auditReport(c *cli.Context) error {
	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	entries, err := stack.engine.AuditReport(c.Context, domain.AuditFilter{
		Operation: domain.Operation(c.String("operation")),
		Outcome:   domain.Outcome(c.String("outcome")),
		TargetID:  c.String("target"),
		Limit:     c.Int("limit"),
	})
	if err != nil {
		return err
	}
	return formatTo(c, entries)
}

func auditVerify(c *cli.Context) error {
	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	if err := stack.audit.VerifyChain(c.Context); err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "Audit chain verified.")
	return nil
}

// ExportCommand returns the export command.
func ExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export live tokens and the beacon ledger as JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Write to a file instead of stdout",
			},
		},
		Action: exportState,
	}
}

// exportBundle joins the token snapshot and the full beacon list so a
// single file captures both halves of the data directory.
type exportBundle struct {
	State   *service.StateExport `json:"state"`
	Beacons []*domain.Beacon     `json:"beacons"`
}

func exportState(c *cli.Context) error {
	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	state, err := stack.engine.ExportState(c.Context)
	if err != nil {
		return err
	}
	beacons, err := stack.registrar.Export(c.Context)
	if err != nil {
		return err
	}

	bundle := &exportBundle{State: state, Beacons: beacons}
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return err
	}

	if path := c.String("file"); path != "" {
		if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "Exported %d tokens and %d beacons to %s\n",
			len(state.Tokens), len(beacons), path)
		return nil
	}

	fmt.Fprintln(c.App.Writer, string(data))
	return nil
}

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(c *cli.Context) error {
			info := buildinfo.Get()
			fmt.Fprintf(c.App.Writer, "glyph-cli %s\n", info.Version)
			fmt.Fprintf(c.App.Writer, "  commit:     %s\n", info.Commit)
			fmt.Fprintf(c.App.Writer, "  built:      %s\n", info.BuildTime)
			fmt.Fprintf(c.App.Writer, "  go version: %s\n", info.GoVersion)
			return nil
		},
	}
}
