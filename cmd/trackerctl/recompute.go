package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"score_tracker/internal/config"
	"score_tracker/internal/repository"
	"score_tracker/internal/services"
)

var (
	recomputeUser uint
	recomputeFrom string
	recomputeTo   string
	recomputeDate string
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Rebuild daily scores from completed events",
	Long: `Without --user, recompute one date (default yesterday) for every user
with activity on it. With --user, recompute every date in --from..--to.`,
	Args: cobra.NoArgs,
	RunE: runRecompute,
}

func init() {
	recomputeCmd.Flags().UintVar(&recomputeUser, "user", 0, "Only this user id")
	recomputeCmd.Flags().StringVar(&recomputeFrom, "from", "", "First date (YYYY-MM-DD), with --user")
	recomputeCmd.Flags().StringVar(&recomputeTo, "to", "", "Last date (YYYY-MM-DD), with --user; defaults to --from")
	recomputeCmd.Flags().StringVar(&recomputeDate, "date", "", "Date for all users (YYYY-MM-DD); defaults to yesterday")
}

// resolveRange validates the --from/--to pair, defaulting to to = from.
func resolveRange(from, to string, loc *time.Location) (time.Time, time.Time, error) {
	if from == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--from is required with --user")
	}
	start, err := time.ParseInLocation("2006-01-02", from, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --from %q: %w", from, err)
	}
	if to == "" {
		return start, start, nil
	}
	end, err := time.ParseInLocation("2006-01-02", to, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --to %q: %w", to, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return start, end, nil
}

func runRecompute(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	loc := cfg.Location()

	var from, to time.Time
	if recomputeUser != 0 {
		var err error
		if from, to, err = resolveRange(recomputeFrom, recomputeTo, loc); err != nil {
			return err
		}
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	store := repository.NewStore(db)
	// The CLI has no cache connection; the server's entries expire on their own.
	stats := services.NewStatsService(store, services.NoopStatsCache{}, loc)
	scores := services.NewDailyScoreService(store, loc)
	reconciler := services.NewReconcileService(store, scores, stats, loc)

	if recomputeUser != 0 {
		n, err := reconciler.ReconcileUser(cmd.Context(), recomputeUser, from, to)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recomputed %d day(s) for user %d.\n", n, recomputeUser)
		return nil
	}

	day := time.Now().In(loc).AddDate(0, 0, -1)
	if recomputeDate != "" {
		if day, err = time.ParseInLocation("2006-01-02", recomputeDate, loc); err != nil {
			return fmt.Errorf("invalid --date %q: %w", recomputeDate, err)
		}
	}
	n, err := reconciler.ReconcileDay(cmd.Context(), day)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recomputed %s for %d user(s).\n", day.Format("2006-01-02"), n)
	return nil
}
