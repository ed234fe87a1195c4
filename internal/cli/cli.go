// Package cli parses the cyberguard command line.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

// Subcommands.
const (
	CmdServe   = "serve"
	CmdCheck   = "check"
	CmdRules   = "rules"
	CmdVersion = "version"
)

// ErrUsage is returned for a missing or unknown subcommand.
var ErrUsage = errors.New("usage: cyberguard <serve|check|rules|version> [flags]")

// CLIArgs are the parsed command-line arguments of one invocation.
type CLIArgs struct {
	Command string

	// ConfigPath is the YAML config file; empty means defaults plus env.
	ConfigPath string

	// Addr overrides the listen address (serve).
	Addr string

	// Kind and Input select the check to run (check). Input "-" reads stdin.
	Kind  string
	Input string

	// ValidateDir is a rule pack directory to validate instead of listing (rules).
	ValidateDir string

	// RawArgs is the original args slice (useful for debugging/tests).
	RawArgs []string
}

// ParseArgs parses a slice of args (without the program name) and returns
// CLIArgs. The function is deterministic and does not read os.Args.
func ParseArgs(args []string) (*CLIArgs, error) {
	if len(args) == 0 {
		return nil, ErrUsage
	}
	out := &CLIArgs{Command: args[0], RawArgs: args}

	fs := flag.NewFlagSet("cyberguard "+args[0], flag.ContinueOnError)
	// Ensure Parse doesn't write to stdout/stderr in tests
	fs.SetOutput(io.Discard)

	switch out.Command {
	case CmdServe:
		fs.StringVar(&out.ConfigPath, "config", "", "Path to YAML config (optional)")
		fs.StringVar(&out.Addr, "addr", "", "Listen address, overrides config")
	case CmdCheck:
		fs.StringVar(&out.ConfigPath, "config", "", "Path to YAML config (optional)")
		fs.StringVar(&out.Kind, "kind", "", "Check kind: email|url|text|breach (required)")
		fs.StringVar(&out.Input, "input", "", "Input to check; - reads stdin")
	case CmdRules:
		fs.StringVar(&out.ConfigPath, "config", "", "Path to YAML config (optional)")
		fs.StringVar(&out.ValidateDir, "validate", "", "Validate the rule packs in this directory")
	case CmdVersion:
	case "-h", "-help", "--help", "help":
		return nil, ErrUsage
	default:
		return nil, fmt.Errorf("unknown command %q: %w", out.Command, ErrUsage)
	}

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}

	if out.Command == CmdCheck {
		if out.Input == "" && fs.NArg() > 0 {
			out.Input = strings.Join(fs.Args(), " ")
		}
		switch out.Kind {
		case "email", "url", "text", "breach":
		case "":
			return nil, fmt.Errorf("missing required -kind argument")
		default:
			return nil, fmt.Errorf("unknown -kind %q (want email, url, text or breach)", out.Kind)
		}
		if strings.TrimSpace(out.Input) == "" {
			return nil, fmt.Errorf("missing required -input argument")
		}
	}
	return out, nil
}
