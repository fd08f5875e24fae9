package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

// FetchCommand returns the fetch command
func FetchCommand() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch an issue and show its description quality without generating",
		ArgsUsage: "ISSUE_KEY",
		Action:    runFetch,
	}
}

func runFetch(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: ISSUE_KEY")
	}
	issueKey := c.Args().Get(0)

	a, err := loadApp(c)
	if err != nil {
		return err
	}

	issue, err := a.jira.FetchIssue(c.Context, issueKey)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s): %s\n", issue.Key, issue.Type, issue.Summary)
	if len(issue.Labels) > 0 {
		fmt.Printf("Labels: %s\n", strings.Join(issue.Labels, ", "))
	}
	if issue.ParentKey != "" {
		fmt.Printf("Parent: %s\n", issue.ParentKey)
	}
	fmt.Printf("\n%s\n", issue.Description)

	if q := issue.Quality; q != nil {
		fmt.Printf("\nDescription quality: %d chars, %d words\n", q.CharCount, q.WordCount)
		for _, w := range q.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
		if !q.IsWeak {
			fmt.Println("  looks good")
		}
	}

	if !issue.Type.Testable() {
		fmt.Printf("\nNote: %s issues are not eligible for test plan generation.\n", issue.Type)
	}

	return nil
}
