package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maskline/numsync/internal/checks"
	"github.com/maskline/numsync/internal/cleaner"
	"github.com/maskline/numsync/internal/model"
	"github.com/maskline/numsync/internal/store"
)

var (
	checkTask  string
	checkClean bool
	checkSave  bool
)

// checkResult is one finished task, gathered concurrently and printed
// in registry order.
type checkResult struct {
	task    *cleaner.Task
	issues  int
	cleaned int
	report  string
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run sync checks against Twilio",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		tw, err := initTwilio()
		if err != nil {
			return err
		}

		checkers := checks.All(st, tw, cfg.Twilio.MainNumber)
		if checkTask != "" {
			checkers = filterChecker(checkers, checkTask)
			if len(checkers) == 0 {
				return eris.Errorf("unknown task: %s", checkTask)
			}
		}

		results := make([]checkResult, len(checkers))
		g, gctx := errgroup.WithContext(ctx)
		for i, c := range checkers {
			g.Go(func() error {
				res, err := runCheck(gctx, c, checkClean)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, res := range results {
			fmt.Printf("# %s\n\n", res.task.Checker().Title())
			fmt.Println(res.report)
			fmt.Println()
			if checkSave {
				run, err := saveRun(ctx, st, res)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "Saved run %s\n", run.ID)
			}
		}
		return nil
	},
}

func filterChecker(checkers []cleaner.Checker, slug string) []cleaner.Checker {
	for _, c := range checkers {
		if c.Slug() == slug {
			return []cleaner.Checker{c}
		}
	}
	return nil
}

func runCheck(ctx context.Context, c cleaner.Checker, clean bool) (checkResult, error) {
	task := cleaner.NewTask(c)

	issues, err := task.Issues(ctx)
	if err != nil {
		return checkResult{}, err
	}
	cleaned := 0
	if clean {
		cleaned, err = task.Clean(ctx)
		if err != nil {
			return checkResult{}, err
		}
		zap.L().Info("task cleaned",
			zap.String("task", c.Slug()),
			zap.Int("issues", issues),
			zap.Int("cleaned", cleaned),
		)
	}
	report, err := task.Report(ctx)
	if err != nil {
		return checkResult{}, err
	}
	return checkResult{task: task, issues: issues, cleaned: cleaned, report: report}, nil
}

func saveRun(ctx context.Context, st store.Store, res checkResult) (*model.CheckRun, error) {
	counts, err := res.task.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return st.RecordCheckRun(ctx, model.CheckRun{
		Task:    res.task.Checker().Slug(),
		Issues:  res.issues,
		Cleaned: res.cleaned,
		Counts:  counts,
		Report:  res.report,
	})
}

func init() {
	checkCmd.Flags().StringVar(&checkTask, "task", "", "run only the named task")
	checkCmd.Flags().BoolVar(&checkClean, "clean", false, "fix auto-fixable issues")
	checkCmd.Flags().BoolVar(&checkSave, "save", false, "record the run in the store")
	rootCmd.AddCommand(checkCmd)
}
