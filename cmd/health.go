package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// HealthCommand returns the health command
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check the configured credentials against their services",
		Action: runHealth,
	}
}

func runHealth(c *cli.Context) error {
	a, err := loadApp(c)
	if err != nil {
		return err
	}

	snap := a.buildHealthMonitor().Check(c.Context)

	for _, s := range snap.Statuses {
		mark := "ok"
		if !s.OK {
			mark = "FAIL"
			if s.Optional {
				mark = "fail (optional)"
			}
		}
		fmt.Printf("%-8s %s", s.Source, mark)
		if s.Detail != "" {
			fmt.Printf("  %s", s.Detail)
		}
		fmt.Println()
	}

	if !snap.Healthy {
		return fmt.Errorf("one or more required credentials failed")
	}
	fmt.Println("all required credentials healthy")
	return nil
}
