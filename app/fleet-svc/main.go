package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	logger "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OpenTransitTools/crowdcast/app/fleet-svc/livefleet"
	"github.com/OpenTransitTools/crowdcast/business/data/fleet"
	"github.com/OpenTransitTools/crowdcast/foundation/database"
	"github.com/ardanlabs/conf"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "FLEET_SVC : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	var cfg struct {
		conf.Version
		Args conf.Args
		DB   struct {
			User         string `conf:"default:postgres"`
			Password     string `conf:"default:postgres,noprint"`
			Host         string `conf:"default:0.0.0.0"`
			Name         string `conf:"default:postgres"`
			DisableTLS   bool   `conf:"default:true"`
			MaxOpenConns int    `conf:"default:2" validate:"gte=1"`
		}
		Schedule struct {
			Source       string `conf:"default:csv" validate:"oneof=csv url db"`
			Path         string `conf:"default:data/osu_cabs_people_traffic_weekly_template.csv" validate:"required_if=Source csv"`
			Url          string `validate:"required_if=Source url"`
			MatchWeekday bool   `conf:"default:false"`
		}
		Synthesis struct {
			RefreshEverySeconds int    `conf:"default:60" validate:"gte=1"`
			SlotPolicy          string `conf:"default:exact"`
			OverridePolicy      string `conf:"default:discard"`
			TimeZone            string `conf:"default:America/New_York" validate:"required"`
		}
		NATS struct {
			Url             string `conf:"default:nats://localhost:4222" validate:"required"`
			PatchSubject    string `conf:"default:vehicle-patches" validate:"required"`
			OverrideSubject string `conf:"default:crowd-overrides" validate:"required"`
			ConnectAttempts int    `conf:"default:10" validate:"gte=1"`
		}
		Web struct {
			Port int `conf:"default:8080" validate:"gte=1,lte=65535"`
		}
		Stops struct {
			LocationFile string
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Synthesize live vehicle state from weekly crowd predictions"
	const prefix = "FLEET"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			printUsage(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	location, err := time.LoadLocation(cfg.Synthesis.TimeZone)
	if err != nil {
		return fmt.Errorf("loading time zone: %w", err)
	}
	slotPolicy, err := fleet.ParseSlotPolicy(cfg.Synthesis.SlotPolicy)
	if err != nil {
		return err
	}
	overridePolicy, err := livefleet.ParseOverridePolicy(cfg.Synthesis.OverridePolicy)
	if err != nil {
		return err
	}

	stopLocations := fleet.DefaultStopLocations()
	if cfg.Stops.LocationFile != "" {
		stopLocations, err = fleet.LoadStopLocationsFile(cfg.Stops.LocationFile)
		if err != nil {
			return err
		}
		log.Printf("main: Loaded %d stop locations from %s", len(stopLocations.Stops), cfg.Stops.LocationFile)
	}

	synthesizer := fleet.NewSynthesizer(fleet.SynthesizerOptions{
		SlotPolicy:   slotPolicy,
		MatchWeekday: cfg.Schedule.MatchWeekday,
		Locations:    stopLocations,
		Calendar:     fleet.NewServiceCalendar(),
	})

	// =========================================================================
	// Schedule source

	var scheduleSource livefleet.ScheduleSource
	switch cfg.Schedule.Source {
	case "url":
		scheduleSource = livefleet.URLScheduleSource(log, cfg.Schedule.Url, os.TempDir())
	case "db":
		log.Println("main: Initializing database support")
		db, err := database.Open(database.Config{
			User:         cfg.DB.User,
			Password:     cfg.DB.Password,
			Host:         cfg.DB.Host,
			Name:         cfg.DB.Name,
			DisableTLS:   cfg.DB.DisableTLS,
			MaxOpenConns: cfg.DB.MaxOpenConns,
		})
		if err != nil {
			return fmt.Errorf("connecting to db: %w", err)
		}
		defer func() {
			log.Printf("main: Database Stopping : %s", cfg.DB.Host)
			if err := db.Close(); err != nil {
				log.Printf("main: error closing database: %v", err)
			}
		}()
		if err = database.StatusCheck(context.Background(), db); err != nil {
			return err
		}
		scheduleSource = livefleet.DBScheduleSource(db)
	default:
		scheduleSource = livefleet.CSVScheduleSource(cfg.Schedule.Path)
	}

	// =========================================================================
	// Start NATS

	natsConn, err := backoff.RetryNotifyWithData(func() (*nats.Conn, error) {
		return nats.Connect(cfg.NATS.Url)
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(cfg.NATS.ConnectAttempts-1)),
		func(err error, next time.Duration) {
			log.Printf("main: Unable to connect to nats at %s, retrying in %v: %v", cfg.NATS.Url, next, err)
		})
	if err != nil {
		return fmt.Errorf("connecting to nats: %w", err)
	}
	defer natsConn.Close()

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	return livefleet.StartServices(log, livefleet.Conf{
		RefreshEverySeconds: cfg.Synthesis.RefreshEverySeconds,
		OverridePolicy:      overridePolicy,
		Location:            location,
		HttpPort:            cfg.Web.Port,
		PatchSubject:        cfg.NATS.PatchSubject,
		OverrideSubject:     cfg.NATS.OverrideSubject,
	}, synthesizer, scheduleSource, natsConn, shutdown)
}

func printUsage(confUsage string) {
	fmt.Println(confUsage)
}
