// Command mobitool builds, unpacks and checks Mobipocket books.
package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/logicossoftware/go-mobi/internal/config"
	"github.com/logicossoftware/go-mobi/internal/logging"
)

// CLI defines the command-line interface for mobitool.
type CLI struct {
	Config    string `name:"config" short:"c" help:"TOML file with book and logging defaults" type:"existingfile"`
	LogLevel  string `name:"log-level" help:"debug, info, warn or error (overrides the config file)"`
	LogFormat string `name:"log-format" help:"text or json (overrides the config file)"`

	Pack     PackCmd     `cmd:"" help:"Build a .mobi from an HTML file and images"`
	Unpack   UnpackCmd   `cmd:"" help:"Write the text and images of a book to a directory"`
	Inspect  InspectCmd  `cmd:"" help:"Print the headers and records of a book as JSON"`
	Validate ValidateCmd `cmd:"" help:"Check a book and print the result as JSON"`
}

// env is handed to every command's Run.
type env struct {
	cfg    config.Config
	log    *logrus.Logger
	stdout io.Writer
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func run(args []string, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("mobitool"),
		kong.Description("Build and inspect Mobipocket (MOBI) e-books"),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	if err != nil {
		return err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Log.Format = cli.LogFormat
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, stderr)
	if err != nil {
		return err
	}
	log.WithField("command", ctx.Command()).Debug("starting")
	return ctx.Run(&env{cfg: cfg, log: log, stdout: stdout})
}

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case errors.Is(err, errInvalidBook):
		// the result has already been printed
		os.Exit(1)
	case err != nil:
		logrus.Fatal(err)
	}
}
