// Command cyberguard runs the CyberGuard API server or a one-off check.
//
//	cyberguard serve [-config f] [-addr :8080]
//	cyberguard check -kind email|url|text|breach -input "..." [-config f]
//	cyberguard rules [-config f] [-validate dir]
//	cyberguard version
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/raysh454/cyberguard/internal/app"
	"github.com/raysh454/cyberguard/internal/checks"
	"github.com/raysh454/cyberguard/internal/cli"
	"github.com/raysh454/cyberguard/internal/logging"
	"github.com/raysh454/cyberguard/internal/rulesets"
	"github.com/raysh454/cyberguard/internal/scoring"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	args, err := cli.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	if args.Command == cli.CmdVersion {
		fmt.Println("cyberguard", version)
		return
	}

	cfg, err := app.LoadConfig(args.ConfigPath)
	if err != nil {
		fatal(err)
	}

	switch args.Command {
	case cli.CmdServe:
		err = serve(cfg, args)
	case cli.CmdCheck:
		err = check(cfg, args)
	case cli.CmdRules:
		err = rules(cfg, args)
	}
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func serve(cfg *app.Config, args *cli.CLIArgs) error {
	if args.Addr != "" {
		cfg.Server.ListenAddr = args.Addr
	}
	logger := logging.NewJSONLogger(os.Stdout, "cyberguard", logging.ParseLevel(cfg.Logging.Level))

	a, err := app.NewApplication(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Run(ctx)
}

// check runs one check and prints its report. Logs go to stderr so stdout
// stays valid JSON.
func check(cfg *app.Config, args *cli.CLIArgs) error {
	input := args.Input
	if input == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		input = string(b)
	}

	logger := logging.NewJSONLogger(os.Stderr, "cyberguard", logging.ParseLevel(cfg.Logging.Level))
	a, err := app.NewApplication(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.Checks.Run(context.Background(), checks.Request{Kind: checks.Kind(args.Kind), Text: input})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func rules(cfg *app.Config, args *cli.CLIArgs) error {
	var (
		sets []*scoring.RuleSet
		err  error
	)
	if args.ValidateDir != "" {
		sets, err = rulesets.LoadDir(args.ValidateDir)
	} else {
		var reg *rulesets.Registry
		reg, err = rulesets.LoadRegistry(cfg.Rules.Dir, nil)
		if reg != nil {
			sets = reg.List()
		}
	}
	if err != nil {
		return err
	}

	for _, rs := range sets {
		fmt.Printf("%-16s kind=%-6s version=%-8s scale=%-8s medium=%d high=%d rules=%d\n",
			rs.Name, rs.Kind, rs.Version, rs.Scale, rs.Thresholds.Medium, rs.Thresholds.High, rs.Len())
	}
	if args.ValidateDir != "" {
		fmt.Printf("%d rule pack(s) valid\n", len(sets))
	}
	return nil
}
