package command

import (
	"bytes"
	"os"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestApp(t *testing.T) {
	app := App()
	if app == nil {
		t.Fatal("App() returned nil")
	}

	if app.Name != "glyph-cli" {
		t.Errorf("Name = %q, want %q", app.Name, "glyph-cli")
	}
	if app.Usage == "" {
		t.Error("Usage should not be empty")
	}

	commandNames := make(map[string]bool)
	for _, cmd := range app.Commands {
		commandNames[cmd.Name] = true
	}

	requiredCommands := []string{"token", "beacon", "audit", "export", "version"}
	for _, name := range requiredCommands {
		if !commandNames[name] {
			t.Errorf("missing required command: %s", name)
		}
	}
}

func TestApp_GlobalFlags(t *testing.T) {
	app := App()

	flagNames := make(map[string]bool)
	for _, flag := range app.Flags {
		flagNames[flag.Names()[0]] = true
	}

	requiredFlags := []string{"data-dir", "output", "verbose"}
	for _, name := range requiredFlags {
		if !flagNames[name] {
			t.Errorf("missing required flag: %s", name)
		}
	}
}

func TestGlobalFlags_Defaults(t *testing.T) {
	app := &cli.App{
		Flags: globalFlags(),
		Action: func(c *cli.Context) error {
			if c.String("output") != "table" {
				t.Errorf("output default = %q, want %q", c.String("output"), "table")
			}
			if c.String("data-dir") == "" {
				t.Error("data-dir default should not be empty")
			}
			if c.Bool("verbose") {
				t.Error("verbose default should be false")
			}
			return nil
		},
	}

	if err := app.Run([]string{"test"}); err != nil {
		t.Fatalf("app.Run failed: %v", err)
	}
}

func TestGlobalFlags_EnvVars(t *testing.T) {
	envVarFlags := make(map[string][]string)
	for _, flag := range globalFlags() {
		if sf, ok := flag.(*cli.StringFlag); ok {
			envVarFlags[sf.Name] = sf.EnvVars
		}
	}

	if len(envVarFlags["data-dir"]) == 0 || envVarFlags["data-dir"][0] != "GLYPH_DATA_DIR" {
		t.Error("data-dir flag should have GLYPH_DATA_DIR env var")
	}
}

func TestTokenCommand(t *testing.T) {
	cmd := TokenCommand()
	if cmd == nil {
		t.Fatal("TokenCommand returned nil")
	}
	if cmd.Name != "token" {
		t.Errorf("Name = %q, want %q", cmd.Name, "token")
	}

	subNames := make(map[string]bool)
	for _, sub := range cmd.Subcommands {
		subNames[sub.Name] = true
	}

	requiredSubs := []string{"list", "get", "create", "remember", "forget"}
	for _, name := range requiredSubs {
		if !subNames[name] {
			t.Errorf("missing subcommand: %s", name)
		}
	}
}

func TestBeaconCommand(t *testing.T) {
	cmd := BeaconCommand()
	if cmd == nil {
		t.Fatal("BeaconCommand returned nil")
	}
	if cmd.Name != "beacon" {
		t.Errorf("Name = %q, want %q", cmd.Name, "beacon")
	}

	subNames := make(map[string]bool)
	for _, sub := range cmd.Subcommands {
		subNames[sub.Name] = true
	}

	requiredSubs := []string{"register", "get", "verify", "proof", "deprecate", "accumulator", "check"}
	for _, name := range requiredSubs {
		if !subNames[name] {
			t.Errorf("missing subcommand: %s", name)
		}
	}
}

func TestAuditCommand(t *testing.T) {
	cmd := AuditCommand()
	if cmd == nil {
		t.Fatal("AuditCommand returned nil")
	}

	subNames := make(map[string]bool)
	for _, sub := range cmd.Subcommands {
		subNames[sub.Name] = true
	}
	for _, name := range []string{"report", "verify"} {
		if !subNames[name] {
			t.Errorf("missing subcommand: %s", name)
		}
	}
}

func TestPrintError(t *testing.T) {
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	PrintError("test error: %s", "details")

	w.Close()
	os.Stderr = oldStderr

	var buf bytes.Buffer
	buf.ReadFrom(r)
	got := buf.String()

	if got != "error: test error: details\n" {
		t.Errorf("PrintError output = %q, want %q", got, "error: test error: details\n")
	}
}

func TestTruncateID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"short", "short"},
		{"exactly16chars!", "exactly16chars!"},
		{"gt-01kct9ns8he7a9m022x0tgbhds", "gt-01kct9ns8h..."},
		{"a", "a"},
		{"", ""},
	}

	for _, tt := range tests {
		got := truncateID(tt.input)
		if got != tt.want {
			t.Errorf("truncateID(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
