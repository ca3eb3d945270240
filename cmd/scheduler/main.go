package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"yt-monitor/internal/config"
	"yt-monitor/internal/logger"
	"yt-monitor/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	appLogger := logger.SetupDefault(os.Stdout, cfg.LogLevel)

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		&asynq.SchedulerOpts{},
	)

	entries, err := periodicTasks(cfg)
	if err != nil {
		log.Fatalf("could not create task: %v", err)
	}
	for _, e := range entries {
		id, err := scheduler.Register(e.schedule, e.task)
		if err != nil {
			log.Fatalf("could not register task %s: %v", e.task.Type(), err)
		}
		appLogger.Info("registered periodic task",
			slog.String("type", e.task.Type()),
			slog.String("schedule", e.schedule),
			slog.String("entry_id", id),
		)
	}

	appLogger.Info("scheduler starting", slog.String("commit", CommitSHA))
	if err := scheduler.Run(); err != nil {
		log.Fatalf("could not run scheduler: %v", err)
	}
}

type periodicTask struct {
	schedule string
	task     *asynq.Task
}

// periodicTasks lists renewal, which must run well inside the lease, and
// backfill. An empty backfill schedule disables backfill.
func periodicTasks(cfg *config.Config) ([]periodicTask, error) {
	renew, err := tasks.NewRenewSubscriptionsTask()
	if err != nil {
		return nil, err
	}
	out := []periodicTask{{schedule: cfg.RenewSchedule, task: renew}}

	if cfg.BackfillSchedule != "" {
		backfill, err := tasks.NewBackfillAllTask()
		if err != nil {
			return nil, err
		}
		out = append(out, periodicTask{schedule: cfg.BackfillSchedule, task: backfill})
	}
	return out, nil
}
