package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/cli/output"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/service"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/ledger/proof"
)

// BeaconCommand returns the beacon subcommand group.
func BeaconCommand() *cli.Command {
	return &cli.Command{
		Name:    "beacon",
		Aliases: []string{"bg"},
		Usage:   "Manage lineage beacons",
		Subcommands: []*cli.Command{
			{
				Name:  "register",
				Usage: "Register a new beacon in the ledger",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "scope",
						Aliases:  []string{"s"},
						Usage:    "Scope code (e.g. AMOS, LING, MDNA)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "artifact",
						Aliases:  []string{"a"},
						Usage:    "Artifact name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "owner",
						Usage:    "Canonical owner",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "external-id",
						Usage: "Optional external registry identifier",
					},
					&cli.StringFlag{
						Name:     "first-seen",
						Usage:    "First-seen date (YYYY-MM-DD)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "hash",
						Usage:    "Algorithm-tagged artifact hash (e.g. sha256:...)",
						Required: true,
					},
				},
				Action: beaconRegister,
			},
			{
				Name:      "get",
				Usage:     "Get beacon details",
				ArgsUsage: "BEACON_ID",
				Action:    beaconGet,
			},
			{
				Name:      "verify",
				Usage:     "Verify an artifact hash against a beacon",
				ArgsUsage: "BEACON_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "hash",
						Usage: "Candidate hash; omit to verify presence only",
					},
				},
				Action: beaconVerify,
			},
			{
				Name:      "proof",
				Usage:     "Produce an inclusion proof for a beacon",
				ArgsUsage: "BEACON_ID",
				Action:    beaconProof,
			},
			{
				Name:      "deprecate",
				Usage:     "Mark a beacon as deprecated",
				ArgsUsage: "BEACON_ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: beaconDeprecate,
			},
			{
				Name:   "accumulator",
				Usage:  "Print the current ledger accumulator",
				Action: beaconAccumulator,
			},
			{
				Name:   "check",
				Usage:  "Recompute the accumulator over the full ledger",
				Action: beaconCheck,
			},
		},
	}
}

func beaconRegister(c *cli.Context) error {
	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	resp, err := stack.registrar.Register(c.Context, &service.RegisterBeaconRequest{
		Scope:          c.String("scope"),
		ArtifactName:   c.String("artifact"),
		CanonicalOwner: c.String("owner"),
		ExternalID:     c.String("external-id"),
		FirstSeen:      c.String("first-seen"),
		Hash:           c.String("hash"),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Beacon registered: %s (position %d)\n", resp.Beacon.BeaconID, resp.Position)
	return nil
}

func beaconGet(c *cli.Context) error {
	beaconID := c.Args().First()
	if beaconID == "" {
		return fmt.Errorf("beacon ID required")
	}

	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	beacon, _, err := stack.registrar.Get(c.Context, beaconID)
	if err != nil {
		return err
	}
	return formatTo(c, beacon)
}

func beaconVerify(c *cli.Context) error {
	beaconID := c.Args().First()
	if beaconID == "" {
		return fmt.Errorf("beacon ID required")
	}

	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	resp, err := stack.registrar.Verify(c.Context, beaconID, c.String("hash"))
	if err != nil {
		return err
	}

	if output.Format(c.String("output")) != output.FormatTable {
		return formatTo(c, resp)
	}
	if resp.Matched {
		fmt.Fprintf(c.App.Writer, "Beacon %s verified.\n", resp.BeaconID)
	} else {
		fmt.Fprintf(c.App.Writer, "Beacon %s MISMATCH: stored hash is %s\n", resp.BeaconID, resp.StoredHash)
	}
	if resp.Deprecated {
		fmt.Fprintln(c.App.Writer, "Warning: beacon is deprecated.")
	}
	return nil
}

func beaconProof(c *cli.Context) error {
	beaconID := c.Args().First()
	if beaconID == "" {
		return fmt.Errorf("beacon ID required")
	}

	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	p, err := proof.Prove(c.Context, stack.ledger, beaconID)
	if err != nil {
		return err
	}
	return formatTo(c, p)
}

func beaconDeprecate(c *cli.Context) error {
	beaconID := c.Args().First()
	if beaconID == "" {
		return fmt.Errorf("beacon ID required")
	}

	if !c.Bool("force") {
		fmt.Fprintf(c.App.Writer, "Deprecation is permanent. Deprecate beacon '%s'? [y/N]: ", beaconID)
		var confirm string
		fmt.Fscanln(c.App.Reader, &confirm)
		if confirm != "y" && confirm != "Y" {
			fmt.Fprintln(c.App.Writer, "Cancelled.")
			return nil
		}
	}

	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	if err := stack.registrar.Deprecate(c.Context, beaconID); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Beacon %s deprecated.\n", beaconID)
	return nil
}

func beaconAccumulator(c *cli.Context) error {
	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	value, size, err := stack.registrar.Accumulator(c.Context)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Accumulator: %s\nLedger size: %d\n", value, size)
	return nil
}

func beaconCheck(c *cli.Context) error {
	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	if err := stack.registrar.VerifyIntegrity(c.Context); err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "Ledger integrity verified.")
	return nil
}
