package cfg

type Cfg struct {
	// Source configuration
	SourceURL   string
	ProfilePath string

	// Database configuration
	DBPath string

	// Application configuration
	Port         string
	APIAccessKey string

	// Monitoring configuration
	CheckInterval   int // nominal scheduled interval, minutes
	IntervalCap     int // upper bound while the breaker holds the interval open, minutes
	VisitGapMinutes int // advisory gap for auto-visit triggers
	OpenGapMinutes  int // advisory gap for auto-open triggers
	SchedulerTick   int // scheduler wakeup period, seconds
	EnableScheduled bool

	// Notification configuration
	NotifyNew     bool
	NotifyUpdated bool
	NotifyWebhook string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
