package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Source configuration
	SourceURL   string `long:"source-url" env:"SOURCE_URL" default:"https://www.silversecond.com/WolfRPGEditor/Contest/entry.shtml" description:"Contest entry listing URL to watch"`
	ProfilePath string `long:"profile" env:"SOURCE_PROFILE" description:"Path to source profile YAML (marker tokens, encoding, exclusions)"`

	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./contestwatch.db" description:"Path to the sqlite database file"`

	// Application configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Monitoring configuration
	CheckInterval   int  `long:"check-interval" env:"CHECK_INTERVAL" default:"60" description:"Nominal scheduled check interval in minutes"`
	IntervalCap     int  `long:"interval-cap" env:"INTERVAL_CAP" default:"240" description:"Maximum check interval in minutes while the source is unstable"`
	VisitGapMinutes int  `long:"visit-gap" env:"VISIT_GAP" default:"30" description:"Minimum gap in minutes between auto-visit triggered checks"`
	OpenGapMinutes  int  `long:"open-gap" env:"OPEN_GAP" default:"60" description:"Minimum gap in minutes between auto-open triggered checks"`
	SchedulerTick   int  `long:"scheduler-tick" env:"SCHEDULER_TICK" default:"60" description:"Scheduler wakeup period in seconds"`
	EnableScheduled bool `long:"scheduled" env:"ENABLE_SCHEDULED" description:"Enable periodic scheduled checks"`

	// Notification configuration
	NotifyNew     bool   `long:"notify-new" env:"NOTIFY_NEW" description:"Send notifications for newly listed works"`
	NotifyUpdated bool   `long:"notify-updated" env:"NOTIFY_UPDATED" description:"Send notifications for updated works"`
	NotifyWebhook string `long:"notify-webhook" env:"NOTIFY_WEBHOOK" description:"Webhook URL for outbound notifications (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (X11; Linux x86_64) ContestWatch/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Tokyo)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		SourceURL:       raw.SourceURL,
		ProfilePath:     raw.ProfilePath,
		DBPath:          raw.DBPath,
		Port:            raw.Port,
		APIAccessKey:    raw.APIAccessKey,
		CheckInterval:   raw.CheckInterval,
		IntervalCap:     raw.IntervalCap,
		VisitGapMinutes: raw.VisitGapMinutes,
		OpenGapMinutes:  raw.OpenGapMinutes,
		SchedulerTick:   raw.SchedulerTick,
		EnableScheduled: raw.EnableScheduled,
		NotifyNew:       raw.NotifyNew,
		NotifyUpdated:   raw.NotifyUpdated,
		NotifyWebhook:   raw.NotifyWebhook,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
