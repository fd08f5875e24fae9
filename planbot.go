package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/planbot/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "planbot",
		Usage:   "AI-powered test plan generator for Jira issues",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
		},
		Commands: []*cli.Command{
			cmd.GenerateCommand(),
			cmd.FetchCommand(),
			cmd.ServeCommand(),
			cmd.HealthCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
