package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/planbot/internal/api"
)

// ServeCommand returns the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides server.addr from config",
			},
			&cli.DurationFlag{
				Name:  "health-interval",
				Usage: "How often to refresh credential health in the background",
				Value: 10 * time.Minute,
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	a, err := loadApp(c)
	if err != nil {
		return err
	}

	service, err := a.buildService(c.Context)
	if err != nil {
		return err
	}

	addr := a.cfg.Server.Addr
	if override := c.String("addr"); override != "" {
		addr = override
	}

	monitor := a.buildHealthMonitor()
	go monitor.Run(c.Context, c.Duration("health-interval"))

	fmt.Printf("planbot API listening on %s\n", addr)
	return api.NewServer(addr, service, a.jira, monitor).Start()
}
