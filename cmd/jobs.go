package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"voyanceBack/internal/timeutil"
)

const (
	jobTimeout         = 1 * time.Minute
	yesterdayRollupRun = "5 0 * * *"
)

// startPackExpiry sweeps expired minute packs on a fixed interval until ctx ends.
func (app *application) startPackExpiry(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		runOnce := func() {
			runCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			expired, err := app.packService.ExpirePacks(runCtx)
			cancel()
			if err != nil {
				app.errorLog.Printf("pack expiry: %v", err)
			} else if expired > 0 {
				app.infoLog.Printf("pack expiry: expired %d packs", expired)
			}
		}

		runOnce()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runOnce()
			}
		}
	}()
}

// startRollups recomputes today's analytics on the given cron schedule and closes yesterday
// shortly after midnight, both on the Paris calendar.
func (app *application) startRollups(ctx context.Context, spec string) error {
	c := cron.New(cron.WithLocation(timeutil.Location()))

	rollup := func(day func() time.Time) func() {
		return func() {
			runCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()
			d := day()
			if err := app.analyticsService.Rollup(runCtx, d); err != nil {
				app.errorLog.Printf("analytics rollup %s: %v", timeutil.DayKey(d), err)
			}
		}
	}
	if _, err := c.AddFunc(spec, rollup(timeutil.Now)); err != nil {
		return err
	}
	if _, err := c.AddFunc(yesterdayRollupRun, rollup(func() time.Time {
		return timeutil.Now().AddDate(0, 0, -1)
	})); err != nil {
		return err
	}

	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}
