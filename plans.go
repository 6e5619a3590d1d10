package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/moneto/moneto-go/internal/localstore"
	"github.com/moneto/moneto-go/internal/plan"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage monthly budget plans",
	}

	cmd.AddCommand(
		newPlanListCmd(),
		newPlanAddCmd(),
		newPlanShowCmd(),
		newPlanCopyCmd(),
		newPlanRmCmd(),
		newPlanAddIncomeCmd(),
		newPlanAddExpenseCmd(),
		newPlanAddEnvelopeCmd(),
	)

	return cmd
}

func newPlanListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List local plans",
		RunE:  runPlanList,
	}
}

func newPlanAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <month>",
		Short: "Create an empty plan for a month (YYYY-MM)",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlanAdd,
	}
}

func newPlanShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <plan-id|month>",
		Short: "Show a plan with its calculated totals",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlanShow,
	}
}

func newPlanCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <plan-id|month> <new-month>",
		Short: "Duplicate a plan into a new month",
		Args:  cobra.ExactArgs(2),
		RunE:  runPlanCopy,
	}
}

func newPlanRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <plan-id|month>",
		Short: "Delete a local plan (and its cloud copy when signed in)",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlanRm,
	}
}

func newPlanAddIncomeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-income <plan-id|month> <name> <amount>",
		Short: "Add a fixed income line to a plan",
		Args:  cobra.ExactArgs(3),
		RunE:  runPlanAddIncome,
	}
}

func newPlanAddExpenseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-expense <plan-id|month> <name> <amount>",
		Short: "Add a fixed expense line to a plan",
		Args:  cobra.ExactArgs(3),
		RunE:  runPlanAddExpense,
	}
}

func newPlanAddEnvelopeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-envelope <plan-id|month> <name> <value>",
		Short: "Add a budget envelope (percentage of available funds, or a fixed amount with --fixed)",
		Args:  cobra.ExactArgs(3),
		RunE:  runPlanAddEnvelope,
	}

	cmd.Flags().Bool("fixed", false, "treat <value> as a fixed amount instead of a percentage")

	return cmd
}

// findPlan resolves a plan by id or by month key.
func findPlan(ctx context.Context, a *app, key string) (*plan.Plan, error) {
	p, err := a.store.Get(ctx, key)
	if err == nil {
		return p, nil
	}

	if !errors.Is(err, localstore.ErrPlanNotFound) {
		return nil, err
	}

	plans, err := a.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	for i := range plans {
		if plans[i].Month == key {
			return &plans[i], nil
		}
	}

	return nil, fmt.Errorf("no plan matching %q", key)
}

func runPlanList(_ *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	plans, err := a.store.GetAll(ctx)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(plans)
	}

	if len(plans) == 0 {
		statusf("No plans yet. Create one with 'moneto plan add YYYY-MM'.\n")
		return nil
	}

	rows := make([][]string, 0, len(plans))

	for _, p := range plans {
		calc := plan.Calculate(p, time.Now())
		rows = append(rows, []string{
			p.ID,
			p.Month,
			a.money.Format(calc.CalculatedResults.TotalIncome),
			a.money.Format(calc.CalculatedResults.FinalBalance),
			formatPlanTime(p.UpdatedAt),
		})
	}

	printTable(os.Stdout, []string{"ID", "MONTH", "INCOME", "BALANCE", "UPDATED"}, rows)

	return nil
}

func runPlanAdd(_ *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	p := plan.New(args[0], time.Now())

	if err := a.store.Upsert(ctx, p); err != nil {
		return err
	}

	statusf("Created plan %s for %s.\n", p.ID, p.Month)
	uploadBestEffort(ctx, a, p)

	return nil
}

func runPlanShow(_ *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	p, err := findPlan(ctx, a, args[0])
	if err != nil {
		return err
	}

	calc := plan.Calculate(*p, time.Now())

	if flagJSON {
		return printJSON(calc)
	}

	fmt.Printf("Plan %s (%s)\n\n", calc.Month, calc.ID)

	if len(calc.FixedIncomes) > 0 {
		fmt.Println("Incomes:")

		for _, item := range calc.FixedIncomes {
			fmt.Printf("  %-20s %s\n", item.Name, a.money.Format(item.Amount))
		}
	}

	if len(calc.FixedExpenses) > 0 {
		fmt.Println("Expenses:")

		for _, item := range calc.FixedExpenses {
			fmt.Printf("  %-20s %s\n", item.Name, a.money.Format(item.Amount))
		}
	}

	if len(calc.Envelopes) > 0 {
		fmt.Println("Envelopes:")

		for _, env := range calc.Envelopes {
			label := a.money.Format(env.Amount)
			if env.Type == plan.EnvelopePercentage {
				label = fmt.Sprintf("%s (%.0f%%)", label, env.Percentage)
			}

			fmt.Printf("  %-20s %s\n", env.Name, label)
		}
	}

	r := calc.CalculatedResults
	fmt.Printf("\nIncome: %s  Expenses: %s  Available: %s  Envelopes: %s  Balance: %s\n",
		a.money.Format(r.TotalIncome), a.money.Format(r.TotalExpenses),
		a.money.Format(r.AvailableAmount), a.money.Format(r.TotalEnvelopes),
		a.money.Format(r.FinalBalance))

	return nil
}

func runPlanCopy(_ *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	src, err := findPlan(ctx, a, args[0])
	if err != nil {
		return err
	}

	copied := plan.Copy(*src, args[1], time.Now())

	if err := a.store.Upsert(ctx, copied); err != nil {
		return err
	}

	statusf("Copied %s into plan %s for %s.\n", src.Month, copied.ID, copied.Month)
	uploadBestEffort(ctx, a, copied)

	return nil
}

func runPlanRm(_ *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	p, err := findPlan(ctx, a, args[0])
	if err != nil {
		return err
	}

	if err := a.store.Remove(ctx, p.ID); err != nil {
		return err
	}

	statusf("Deleted plan %s (%s).\n", p.ID, p.Month)

	if conn := a.tryConnectCloud(ctx); conn != nil {
		res, err := conn.orch.DeleteSelected(ctx, []string{p.ID}, conn.userID)
		if err != nil || len(res.Errors) > 0 {
			a.logger.Warn("cloud delete failed, copy remains remote", "plan_id", p.ID)
		}
	}

	return nil
}

// mutatePlan loads a plan, applies fn, bumps its version marker, saves,
// and pushes best-effort.
func mutatePlan(key string, fn func(p *plan.Plan) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	p, err := findPlan(ctx, a, key)
	if err != nil {
		return err
	}

	if err := fn(p); err != nil {
		return err
	}

	p.Touch(time.Now())

	if err := a.store.Upsert(ctx, *p); err != nil {
		return err
	}

	uploadBestEffort(ctx, a, *p)

	return nil
}

func runPlanAddIncome(_ *cobra.Command, args []string) error {
	amount, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", args[2])
	}

	return mutatePlan(args[0], func(p *plan.Plan) error {
		p.FixedIncomes = append(p.FixedIncomes, plan.NewItem(args[1], amount))
		return nil
	})
}

func runPlanAddExpense(_ *cobra.Command, args []string) error {
	amount, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", args[2])
	}

	return mutatePlan(args[0], func(p *plan.Plan) error {
		p.FixedExpenses = append(p.FixedExpenses, plan.NewItem(args[1], amount))
		return nil
	})
}

func runPlanAddEnvelope(cmd *cobra.Command, args []string) error {
	value, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("invalid value %q", args[2])
	}

	fixed, _ := cmd.Flags().GetBool("fixed")

	return mutatePlan(args[0], func(p *plan.Plan) error {
		if fixed {
			p.Envelopes = append(p.Envelopes, plan.NewEnvelope(args[1], plan.EnvelopeFixed, 0, value))
			return nil
		}

		p.Envelopes = append(p.Envelopes, plan.NewEnvelope(args[1], plan.EnvelopePercentage, value, 0))
		p.Envelopes = plan.NormalizeEnvelopePercentages(p.Envelopes)

		return nil
	})
}

// uploadBestEffort pushes a plan to the cloud when signed in. Failures
// are logged, never fatal: the next sync pass will reconcile.
func uploadBestEffort(ctx context.Context, a *app, p plan.Plan) {
	conn := a.tryConnectCloud(ctx)
	if conn == nil {
		return
	}

	if err := conn.orch.UploadPlan(ctx, p, conn.userID); err != nil {
		a.logger.Warn("cloud upload failed, plan will sync later", "plan_id", p.ID, "error", err)
	}
}
