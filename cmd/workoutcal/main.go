package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"workoutcal/internal/auth"
	"workoutcal/internal/calendar"
	"workoutcal/internal/config"
	appLog "workoutcal/internal/log"
	"workoutcal/internal/model"
	"workoutcal/internal/schedule"
	"workoutcal/internal/store"
	"workoutcal/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath  string
	envFile     string
	listen      string
	debug       bool
	tokenFor    int64
	tokenTTL    time.Duration
	addTemplate string
}

func main() {
	flags := parseFlags()

	config.LoadEnv(flags.envFile)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	level := appLog.ParseLevel(conf.Log.Level)
	if flags.debug {
		level = appLog.LevelDebug
	}
	appLog.Setup(os.Stderr, conf.Log.Format, level)
	appLog.Info("workoutcal starting", "version", version)

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	if flags.tokenFor > 0 {
		token, err := auth.Issue(auth.Config{Secret: conf.Auth.Secret, Issuer: conf.Auth.Issuer}, model.UserID(flags.tokenFor), flags.tokenTTL)
		if err != nil {
			appLog.Error("failed to issue token", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("workoutcal stopped with error", err)
		os.Exit(1)
	}
	appLog.Info("workoutcal exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	loc, err := conf.Location()
	if err != nil {
		appLog.Error("unknown timezone; using UTC", err, "timezone", conf.Timezone)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"max_occurrences", conf.MaxOccurrences,
		"database_driver", conf.Database.Driver,
	)

	st, err := store.Open(ctx, store.Config{Driver: conf.Database.Driver, DSN: conf.Database.DSN})
	if err != nil {
		return err
	}
	defer st.Close()

	if flags.addTemplate != "" {
		return addTemplate(ctx, st, flags.addTemplate)
	}

	authn := auth.ContextAuthenticator{}
	svc := schedule.NewService(authn, st)

	cache := calendar.NewCache(0)
	if err := cache.Schedule(conf.RefreshCron, loc); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		cache.Stop(stopCtx)
	}()

	feed := calendar.NewFeed(svc, authn, cache, calendar.FeedConfig{
		DisplayLocation:           loc,
		MaxOccurrencesPerInstance: conf.MaxOccurrences,
		Name:                      "Workouts",
	})

	return web.NewServer(conf, svc, feed).Run(ctx, conf.Listen)
}

// addTemplate creates a template from "user:name[:kind]".
func addTemplate(ctx context.Context, st store.Store, arg string) error {
	parts := strings.SplitN(arg, ":", 3)
	if len(parts) < 2 {
		return errors.New("-add-template wants user:name[:kind]")
	}
	user, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || user <= 0 {
		return fmt.Errorf("-add-template: bad user id %q", parts[0])
	}
	tpl := model.WorkoutTemplate{UserID: model.UserID(user), Name: strings.TrimSpace(parts[1])}
	if len(parts) == 3 {
		tpl.Kind = strings.TrimSpace(parts[2])
	}
	if tpl.Name == "" {
		return errors.New("-add-template: name is empty")
	}

	id, err := st.CreateTemplate(ctx, tpl)
	if err != nil {
		return err
	}
	appLog.Info("workout template created", "template_id", int64(id), "user_id", user, "name", tpl.Name)
	fmt.Println(int64(id))
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/workoutcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env", ".env", "Optional dotenv file with WORKOUTCAL_* overrides")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.Int64Var(&cfg.tokenFor, "token", 0, "Print a bearer token for this user id and exit")
	flag.DurationVar(&cfg.tokenTTL, "token-ttl", 24*time.Hour, "Lifetime of a token printed by -token")
	flag.StringVar(&cfg.addTemplate, "add-template", "", "Create a workout template (user:name[:kind]) and exit")

	flag.Parse()

	return cfg
}
