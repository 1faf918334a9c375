package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/freddie-nelson/ig-bot/internal/scheduler"
	"github.com/freddie-nelson/ig-bot/internal/store"
)

const watchJob = "watch"

func (a *app) watchCmd() *cobra.Command {
	var (
		once     bool
		schedule string
	)
	cmd := &cobra.Command{
		Use:   "watch [USER...]",
		Short: "Periodically scrape profiles into the database",
		Long: "Periodically scrape profiles into the database. Users default to watch.users;\n" +
			"each run logs in, records the grid listing, the profile summary and any new posts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.HasCredentials() {
				return fmt.Errorf("account.username and account.password must be set to watch")
			}
			opts := scheduler.WatchOptions{
				Users:         a.cfg.Watch.Users,
				PostsPerUser:  a.cfg.Watch.PostsPerUser,
				CommentsLimit: a.cfg.Watch.CommentsLimit,
			}
			if len(args) > 0 {
				opts.Users = args
			}
			if len(opts.Users) == 0 {
				return fmt.Errorf("no users to watch: pass them as arguments or set watch.users")
			}

			st, err := store.New(a.cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			newScraper := func() scheduler.Scraper { return a.newBot() }
			watcher := scheduler.NewWatcher(newScraper, st, opts, a.logger)

			sched, err := scheduler.New(a.cfg.Watch.Timezone, 0, a.logger)
			if err != nil {
				return err
			}
			if once {
				return sched.RunNow(watchJob, watcher.Run)
			}

			if schedule != "" {
				err = sched.AddJob(watchJob, schedule, watcher.Run)
			} else {
				err = sched.AddIntervalJob(watchJob, a.cfg.Watch.IntervalHours, watcher.Run)
			}
			if err != nil {
				return err
			}

			sched.Start()
			for _, job := range sched.ListJobs() {
				a.logger.Info("Scheduled", zap.String("job", job.Name), zap.Time("next_run", job.NextRun))
			}
			<-cmd.Context().Done()
			<-sched.Stop().Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single scrape and exit")
	cmd.Flags().StringVar(&schedule, "schedule", "", `cron expression overriding watch.interval_hours, e.g. "0 7 * * *"`)
	return cmd
}
