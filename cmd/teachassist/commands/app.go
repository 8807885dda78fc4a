package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"teachassist-backend/internal/appointments"
	"teachassist-backend/internal/changes"
	"teachassist-backend/internal/components/chrono"
	"teachassist-backend/internal/components/telemetry"
	"teachassist-backend/internal/db"
	"teachassist-backend/internal/notify"
	"teachassist-backend/internal/scrapers/teachassist"
	"teachassist-backend/internal/snapshot"
	"teachassist-backend/internal/store"
	"teachassist-backend/pkg/configutil"
	"time"
)

const (
	env_username = "TEACHASSIST_USERNAME"
	env_password = "TEACHASSIST_PASSWORD"

	default_watch_schedule = "@every 15m"
)

type Config struct {
	Portal      teachassist.PortalConfig `json:"portal"`
	Database    db.Config                `json:"database"`
	Credentials teachassist.Credentials  `json:"credentials"`
	SchoolId    string                   `json:"school_id"`
	// Smtp enables email notifications when set.
	Smtp *notify.SmtpConfig `json:"smtp"`
	Otlp telemetry.OtlpConfig `json:"otlp"`
	// Watch is the cron schedule of the watch command.
	Watch string `json:"watch"`
}

func readConfig() (Config, error) {
	read := configutil.ReadConfig[Config]
	if filepath.Base(configPath) == configPath {
		// a bare name is looked up from the working directory upwards
		read = configutil.ReadRecursively[Config]
	}
	config, err := read(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("%s not found", configPath)
	}
	if err != nil {
		return Config{}, err
	}

	err = configutil.LoadEnv(".env")
	if err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if username := os.Getenv(env_username); username != "" {
		config.Credentials.Username = username
	}
	if password := os.Getenv(env_password); password != "" {
		config.Credentials.Password = password
	}
	if config.Watch == "" {
		config.Watch = default_watch_schedule
	}

	err = configutil.Validate(config)
	if err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// app holds everything a command that talks to the portal or the database
// needs.
type app struct {
	config   Config
	time     chrono.TimeAPI
	tel      telemetry.API
	otel     telemetry.Otel
	database *sql.DB
	store    *store.Store
	snapshot snapshot.Snapshot
	portal   *teachassist.Portal
}

func openApp(ctx context.Context) *app {
	config, err := readConfig()
	if err != nil {
		fatal("read config", err)
	}

	otel, err := telemetry.SetupOtel(ctx, "teachassist", config.Otlp)
	if err != nil {
		fatal("setup otel", err)
	}
	var tel telemetry.API = telemetry.SlogAPI{}
	if otel.MeterProvider != nil {
		tel = telemetry.NewMeterAPI(tel)
	}

	database, err := db.Open(ctx, config.Database)
	if err != nil {
		fatal("open database", err)
	}

	clock := chrono.NewStandardTime()
	qry := db.New(database)
	makeTx := db.NewMakeTx(database)
	st := store.NewStore(qry, makeTx, clock, tel)

	client, err := teachassist.NewClient(config.Portal, tel)
	if err != nil {
		fatal("create portal client", err)
	}
	portal := teachassist.NewPortal(client, st, config.Credentials, tel)

	return &app{
		config:   config,
		time:     clock,
		tel:      tel,
		otel:     otel,
		database: database,
		store:    st,
		snapshot: snapshot.NewSnapshot(qry, makeTx, clock, tel),
		portal:   portal,
	}
}

func (a *app) Close() {
	a.database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	err := a.otel.Shutdown(ctx)
	if err != nil {
		a.tel.ReportWarning("otel.shutdown", err)
	}
}

func (a *app) notifier() notify.Notifier {
	notifiers := []notify.Notifier{notify.NewLogNotifier(a.tel)}
	if a.config.Smtp != nil {
		notifiers = append(notifiers, notify.NewEmailNotifier(*a.config.Smtp, a.tel))
	}
	return notify.Multi(notifiers...)
}

func (a *app) detector() changes.Detector {
	return changes.NewDetector(
		a.portal,
		a.store,
		a.store.Settings,
		a.notifier(),
		a.time,
		a.tel,
	)
}

func (a *app) appointments() appointments.Service {
	return appointments.NewService(a.portal, a.store, a.config.SchoolId, a.time, a.tel)
}
