package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/planbot/internal/generate"
	"github.com/planbot/internal/plan"
	"github.com/planbot/pkg/models"
)

// GenerateCommand returns the generate command
func GenerateCommand() *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Generate a test plan for a Jira issue",
		ArgsUsage: "ISSUE_KEY",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: markdown, jira, or json",
				Value:   plan.FormatMarkdown,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the plan to `FILE` instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "post-to-jira",
				Usage: "Post the plan back to the issue as a comment",
			},
			&cli.StringFlag{
				Name:  "acceptance-criteria",
				Usage: "Extra acceptance criteria to include in the context",
			},
			&cli.StringFlag{
				Name:  "risk-areas",
				Usage: "Known risk areas to emphasize",
			},
			&cli.StringFlag{
				Name:  "instructions",
				Usage: "Special instructions for the generator",
			},
		},
		Action: runGenerate,
	}
}

func runGenerate(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: ISSUE_KEY")
	}
	issueKey := c.Args().Get(0)

	a, err := loadApp(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, 5*time.Minute)
	defer cancel()

	service, err := a.buildService(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Generating test plan for %s...\n", issueKey)

	result, err := service.Generate(ctx, generate.Request{
		IssueKey: issueKey,
		Testing: models.TestingContext{
			AcceptanceCriteria:  c.String("acceptance-criteria"),
			RiskAreas:           c.String("risk-areas"),
			SpecialInstructions: c.String("instructions"),
		},
	})
	if err != nil {
		return err
	}

	rendered, err := plan.Export(result.Plan, result.Issue.Key, c.String("format"))
	if err != nil {
		return err
	}

	if output := c.String("output"); output != "" {
		if err := os.WriteFile(output, []byte(rendered), 0644); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		fmt.Printf("Wrote test plan to %s\n", output)
	} else {
		fmt.Println(rendered)
	}

	if c.Bool("post-to-jira") {
		text := plan.JiraText(result.Plan, result.Issue.Key)
		id, updated, err := a.jira.PostComment(ctx, result.Issue.Key, text)
		if err != nil {
			return fmt.Errorf("plan generated but post-back failed: %w", err)
		}
		if updated {
			fmt.Printf("Updated existing comment %s on %s\n", id, result.Issue.Key)
		} else {
			fmt.Printf("Posted comment %s on %s\n", id, result.Issue.Key)
		}
	}

	return nil
}
