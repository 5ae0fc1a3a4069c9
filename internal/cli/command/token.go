package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/cli/output"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/service"
)

// TokenCommand returns the token subcommand group.
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:    "token",
		Aliases: []string{"tok"},
		Usage:   "Manage state tokens",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List live tokens",
				Action: tokenList,
			},
			{
				Name:      "get",
				Usage:     "Get token details",
				ArgsUsage: "TOKEN_ID",
				Action:    tokenGet,
			},
			{
				Name:  "create",
				Usage: "Create a new token",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "class",
						Aliases:  []string{"c"},
						Usage:    "Token class: anchor, mutation, warning, audit, consent",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "explanation",
						Aliases:  []string{"e"},
						Usage:    "One-sentence explanation",
						Required: true,
					},
					&cli.DurationFlag{
						Name:    "ttl",
						Aliases: []string{"t"},
						Value:   30 * time.Minute,
						Usage:   "Token TTL (e.g. 30m, 12h)",
					},
					&cli.Float64Flag{
						Name:  "intensity",
						Value: 0.5,
						Usage: "Token intensity in [0, 1]",
					},
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Optional owner label",
					},
				},
				Action: tokenCreate,
			},
			{
				Name:  "remember",
				Usage: "Create a persistent token with a long TTL",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "explanation",
						Aliases:  []string{"e"},
						Usage:    "One-sentence explanation",
						Required: true,
					},
					&cli.DurationFlag{
						Name:    "ttl",
						Aliases: []string{"t"},
						Usage:   "Override the persistent TTL",
					},
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Optional owner label",
					},
				},
				Action: tokenRemember,
			},
			{
				Name:      "forget",
				Usage:     "Remove a token from the live set",
				ArgsUsage: "TOKEN_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "reason",
						Aliases: []string{"r"},
						Usage:   "Reason recorded in the audit trail",
					},
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: tokenForget,
			},
		},
	}
}

func tokenList(c *cli.Context) error {
	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	tokens, err := stack.engine.ListActive(c.Context)
	if err != nil {
		return err
	}

	if output.Format(c.String("output")) != output.FormatTable {
		return formatTo(c, tokens)
	}

	table := &output.Table{
		Headers: []string{"TOKEN ID", "CLASS", "INTENSITY", "EXPIRES", "EXPLANATION"},
	}
	for _, token := range tokens {
		table.AddRow(
			token.ID,
			string(token.Class),
			fmt.Sprintf("%.2f", token.Intensity),
			token.ExpiresAtTime().Format("2006-01-02 15:04"),
			token.Explanation,
		)
	}
	if err := table.Render(c.App.Writer); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\nTotal: %d tokens\n", len(tokens))
	return nil
}

func tokenGet(c *cli.Context) error {
	tokenID := c.Args().First()
	if tokenID == "" {
		return fmt.Errorf("token ID required")
	}

	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	token, err := stack.engine.Get(c.Context, tokenID)
	if err != nil {
		return err
	}
	return formatTo(c, token)
}

func tokenCreate(c *cli.Context) error {
	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	intensity := c.Float64("intensity")
	token, err := stack.engine.Create(c.Context, &service.CreateTokenRequest{
		Class:       domain.TokenClass(c.String("class")),
		Intensity:   &intensity,
		Source:      domain.SourceUser,
		Owner:       c.String("owner"),
		Explanation: c.String("explanation"),
		TTL:         c.Duration("ttl"),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Token created: %s (expires %s)\n",
		token.ID, token.ExpiresAtTime().Format(time.RFC3339))
	return nil
}

func tokenRemember(c *cli.Context) error {
	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	token, err := stack.engine.Remember(c.Context, &service.CreateTokenRequest{
		Source:      domain.SourceUser,
		Owner:       c.String("owner"),
		Explanation: c.String("explanation"),
		TTL:         c.Duration("ttl"),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Persistent token created: %s (expires %s)\n",
		token.ID, token.ExpiresAtTime().Format(time.RFC3339))
	return nil
}

func tokenForget(c *cli.Context) error {
	tokenID := c.Args().First()
	if tokenID == "" {
		return fmt.Errorf("token ID required")
	}

	if !c.Bool("force") {
		fmt.Fprintf(c.App.Writer, "Are you sure you want to forget token '%s'? [y/N]: ", truncateID(tokenID))
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

	err = stack.engine.Forget(c.Context, &service.ForgetTokenRequest{
		TokenID: tokenID,
		Reason:  c.String("reason"),
		Source:  domain.SourceUser,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Token %s forgotten.\n", truncateID(tokenID))
	return nil
}
