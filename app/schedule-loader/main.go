package main

import (
	"errors"
	"fmt"
	"io/fs"
	logger "log"
	"os"
	"time"

	"github.com/OpenTransitTools/crowdcast/app/schedule-loader/scheduleloader"
	"github.com/OpenTransitTools/crowdcast/business/data/fleet"
	"github.com/OpenTransitTools/crowdcast/business/data/schedule"
	"github.com/OpenTransitTools/crowdcast/foundation/database"
	"github.com/ardanlabs/conf"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "SCHEDULE_LOADER : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
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
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,noprint"`
			Host       string `conf:"default:0.0.0.0"`
			Name       string `conf:"default:postgres"`
			DisableTLS bool   `conf:"default:true"`
		}
		Schedule struct {
			Source       string `conf:"default:csv" validate:"oneof=csv db"`
			Path         string `conf:"default:data/osu_cabs_people_traffic_weekly_template.csv"`
			MatchWeekday bool   `conf:"default:false"`
		}
		Synthesis struct {
			SlotPolicy string `conf:"default:exact"`
			TimeZone   string `conf:"default:America/New_York" validate:"required"`
		}
		Stops struct {
			LocationFile string
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Import and inspect weekly crowd prediction schedules"
	const prefix = "SCHEDULE_LOADER"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
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

	command := cfg.Args.Num(0)
	needsDB := command == "import" || cfg.Schedule.Source == "db"

	var db *sqlx.DB
	if needsDB && command != "" {
		log.Println("main: Initializing database support")
		db, err = database.Open(database.Config{
			User:       cfg.DB.User,
			Password:   cfg.DB.Password,
			Host:       cfg.DB.Host,
			Name:       cfg.DB.Name,
			DisableTLS: cfg.DB.DisableTLS,
		})
		if err != nil {
			return fmt.Errorf("connecting to db: %w", err)
		}
		defer func() {
			log.Printf("main: Database Stopping : %s", cfg.DB.Host)
			err = db.Close()
			if err != nil {
				log.Printf("main: error closing database: %v", err)
			}
		}()
	}

	loadTable := func() (*schedule.Table, error) {
		if cfg.Schedule.Source == "db" {
			return schedule.LoadTable(db)
		}
		return schedule.LoadCSVFile(cfg.Schedule.Path)
	}

	switch command {
	case "import":
		path := cfg.Args.Num(1)
		if len(path) < 1 {
			path = cfg.Schedule.Path
		}
		return scheduleloader.ImportSchedule(log, db, path)

	case "stats":
		table, err := loadTable()
		if err != nil {
			return err
		}
		if err = scheduleloader.PrintStats(os.Stdout, table); err != nil {
			return err
		}
		if db != nil {
			counts, err := schedule.SlotRowCounts(db, table.Slots())
			if err != nil {
				return err
			}
			return scheduleloader.PrintSlotCounts(os.Stdout, table.Slots(), counts)
		}
		return nil

	case "slot", "export":
		cmd, err := parseSlotCmd(command, cfg.Args)
		if err != nil {
			return err
		}
		location, err := time.LoadLocation(cfg.Synthesis.TimeZone)
		if err != nil {
			return fmt.Errorf("loading time zone: %w", err)
		}
		slotPolicy, err := fleet.ParseSlotPolicy(cfg.Synthesis.SlotPolicy)
		if err != nil {
			return err
		}
		stopLocations := fleet.DefaultStopLocations()
		if cfg.Stops.LocationFile != "" {
			if stopLocations, err = fleet.LoadStopLocationsFile(cfg.Stops.LocationFile); err != nil {
				return err
			}
		}
		at, err := scheduleloader.SlotTime(time.Now().In(location), cmd.slot, cmd.weekday)
		if err != nil {
			return err
		}
		table, err := loadTable()
		if err != nil {
			return err
		}
		synthesis, err := scheduleloader.SynthesizeAt(table, fleet.SynthesizerOptions{
			SlotPolicy:   slotPolicy,
			MatchWeekday: cfg.Schedule.MatchWeekday,
			Locations:    stopLocations,
			Calendar:     fleet.NewServiceCalendar(),
		}, at)
		if err != nil {
			return err
		}
		if command == "export" {
			return scheduleloader.ExportSynthesis(log, synthesis, cmd.destinationFile)
		}
		return scheduleloader.PrintSynthesis(os.Stdout, synthesis)

	default:
		fmt.Println("import [file]: replace the schedule_prediction table with a csv schedule")
		fmt.Println("stats: summarize the schedule")
		fmt.Println("slot <HH:MM> [weekday]: print the vehicles a synthesis pass would produce at a slot")
		fmt.Println("export <HH:MM> <file> [weekday]: save the vehicles of a slot to a csv file")
		usage, err := conf.Usage(prefix, &cfg)
		if err != nil {
			return fmt.Errorf("generating config usage: %w", err)
		}
		fmt.Println(usage)
	}
	return nil
}
