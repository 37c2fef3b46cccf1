package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/term"

	"github.com/mono/maccore/clog"
	"github.com/mono/maccore/config"
	"github.com/mono/maccore/contract"
	"github.com/mono/maccore/generator"
	"github.com/mono/maccore/output"
)

// Execute runs the btouch CLI with the given version string.
func Execute(version string) {
	if err := newCommand(version).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand(version string) *cli.Command {
	return &cli.Command{
		Name:                   "btouch",
		Usage:                  "Generate C# bindings for Objective-C APIs from an API contract",
		Version:                version,
		UseShortOptionHandling: true,
		Flags:                  flags(),
		// Allow `btouch api.yaml` as shorthand for `btouch generate api.yaml`
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() > 0 {
				return generateAction(ctx, cmd)
			}
			return cli.DefaultShowRootCommandHelp(cmd)
		},
		Commands: []*cli.Command{
			{
				Name:      "generate",
				Usage:     "Generate binding sources into the output directory",
				ArgsUsage: "<api.yaml>",
				Action:    generateAction,
			},
			{
				Name:      "check",
				Usage:     "Validate the contract and run the generator without writing",
				ArgsUsage: "<api.yaml>",
				Action:    checkAction,
			},
			{
				Name:      "inspect",
				Usage:     "Print the bound types, selectors and message send entry points",
				ArgsUsage: "<api.yaml>",
				Action:    inspectAction,
			},
		},
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "outdir",
			Aliases: []string{"o"},
			Usage:   "Output directory for generated sources",
		},
		&cli.StringFlag{
			Name:  "ns",
			Usage: "Namespace holding Messaging and Trampolines",
		},
		&cli.StringFlag{
			Name:  "core-ns",
			Usage: "Root namespace of the framework bindings",
			Value: contract.DefaultCoreNamespace,
		},
		&cli.BoolFlag{
			Name:    "external",
			Aliases: []string{"e"},
			Usage:   "Generate a third-party binding",
		},
		&cli.BoolFlag{
			Name:  "desktop",
			Usage: "Target the desktop runtime (x86 only, no device branch)",
		},
		&cli.StringFlag{
			Name:  "sourceonly",
			Usage: "Write the list of generated files to `FILE`",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "Settings file (default: btouch.toml next to the contract)",
		},
		&cli.IntFlag{
			Name:    "jobs",
			Aliases: []string{"j"},
			Usage:   "Concurrent file writes (0 uses all CPUs)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Log per-type progress",
		},
	}
}

// job is a prepared run: the loaded contract plus the effective options.
type job struct {
	contract *contract.Contract
	gen      generator.Options
	out      output.Options
}

// prepare sets up logging, merges defaults, the settings file and explicit
// flags (in that order), and loads the contract.
func prepare(ctx context.Context, cmd *cli.Command) (context.Context, *job, error) {
	if cmd.NArg() < 1 {
		return ctx, nil, errors.Errorf("usage: btouch %s <api.yaml>", cmd.Name)
	}
	path := cmd.Args().First()
	ctx = withLogger(ctx, cmd)

	j := &job{}
	cfgPath := cmd.String("config")
	if cfgPath == "" {
		cfgPath = config.Find(path)
	}
	if cfgPath != "" {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return ctx, nil, err
		}
		clog.Ctx(ctx).Debug("loaded settings", "path", cfgPath)
		j.gen = cfg.GeneratorOptions()
		j.out = cfg.OutputOptions()
	}

	if cmd.IsSet("ns") {
		j.gen.RuntimeNamespace = cmd.String("ns")
	}
	if cmd.IsSet("core-ns") || j.gen.CoreNamespace == "" {
		j.gen.CoreNamespace = cmd.String("core-ns")
	}
	if cmd.IsSet("external") {
		j.gen.External = cmd.Bool("external")
	}
	if cmd.IsSet("desktop") {
		j.gen.Desktop = cmd.Bool("desktop")
	}
	if cmd.IsSet("outdir") {
		j.out.Dir = cmd.String("outdir")
	}
	if cmd.IsSet("jobs") {
		j.out.Jobs = cmd.Int("jobs")
	}
	j.out.SourceList = cmd.String("sourceonly")

	c, err := contract.Load(path, contract.Options{CoreNamespace: j.gen.CoreNamespace})
	if err != nil {
		return ctx, nil, err
	}
	j.contract = c
	return clog.WithAttrs(ctx, "contract", path), j, nil
}

// withLogger installs a tint logger on stderr. Colors are off when stderr
// is not a terminal or NO_COLOR is set.
func withLogger(ctx context.Context, cmd *cli.Command) context.Context {
	w := errWriter(cmd)
	noColor := os.Getenv("NO_COLOR") != ""
	if f, ok := w.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		noColor = true
	}
	level := slog.LevelInfo
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	_, ctx = clog.NewTerminalLogger(ctx, w, level, noColor)
	return ctx
}

func errWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}

func outWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func (j *job) generate(ctx context.Context) (*generator.Generator, []generator.File, error) {
	g := generator.New(j.contract, j.gen)
	files, err := g.Generate(ctx)
	if err != nil {
		return nil, nil, err
	}
	return g, files, nil
}

func generateAction(ctx context.Context, cmd *cli.Command) error {
	ctx, j, err := prepare(ctx, cmd)
	if err != nil {
		return err
	}
	_, files, err := j.generate(ctx)
	if err != nil {
		return err
	}
	_, err = output.Write(ctx, files, j.out)
	return err
}

func checkAction(ctx context.Context, cmd *cli.Command) error {
	ctx, j, err := prepare(ctx, cmd)
	if err != nil {
		return err
	}
	_, files, err := j.generate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(outWriter(cmd), "ok: %d types, %d files\n", len(j.contract.Types), len(files))
	return nil
}

func inspectAction(ctx context.Context, cmd *cli.Command) error {
	ctx, j, err := prepare(ctx, cmd)
	if err != nil {
		return err
	}
	g, _, err := j.generate(ctx)
	if err != nil {
		return err
	}
	inspect(outWriter(cmd), j.contract, g.Context())
	return nil
}
