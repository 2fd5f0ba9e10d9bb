package main

import (
	"context"
	"fmt"

	"github.com/trezcool/kinerja/core/aspect"
)

func (cli *commandLine) printErrors(errs []string) {
	for _, e := range errs {
		fmt.Fprintf(cli.out, "  - %s\n", e)
	}
}

func (cli *commandLine) generateRPP(periodID string) error {
	res, err := cli.rppSvc.GenerateForPeriod(context.Background(), periodID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "RPP submissions: %d generated, %d skipped (%d teachers), %d items created\n",
		res.Generated, res.Skipped, res.Total, res.ItemsCreated)
	cli.printErrors(res.Errors)
	return nil
}

func (cli *commandLine) assignEvaluations(periodID string) error {
	res, err := cli.evalSvc.AssignTeachersToPeriod(context.Background(), periodID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "evaluations: %d created, %d skipped, %d items created\n", res.Created, res.Skipped, res.ItemsCreated)
	cli.printErrors(res.Errors)
	return nil
}

// validateWeights fails unless the active aspect weights add up to exactly 100.
func (cli *commandLine) validateWeights() error {
	report, err := cli.aspectSvc.ValidateWeights(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d active aspects, total weight %s: %s\n", report.ActiveCount, report.TotalWeight, report.Message)
	if report.Status != aspect.WeightsValid {
		return fmt.Errorf("invalid aspect weights (%s)", report.Status)
	}
	return nil
}
