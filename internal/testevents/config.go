package testevents

import (
	"errors"
	"time"
)

// Config holds configuration for the event test.
type Config struct {
	BaseURL   string        // Base URL of the service
	NumEvents int           // Number of events to generate
	Workers   int           // Number of concurrent submitters
	Timeout   time.Duration // HTTP request timeout
	Days      int           // Events are spread over this many days ending at End
	End       time.Time     // Last day events may fall on; zero means today (UTC)
	Seed      uint64        // Generator seed; zero picks one from the clock
	PageSize  int           // Page size used when walking the listing

	// Token is sent as the bearer token. When empty and Secret is set, a
	// token for UserID is minted; when both are empty the server must be in
	// development mode.
	Token  string
	Secret string
	UserID string

	OutputFile string // Output file for created events; empty skips saving
	LogFile    string // Log file for test output
	Verbose    bool   // Enable verbose logging
}

// Stats holds test statistics.
type Stats struct {
	EventsGenerated  int
	EventsSubmitted  int
	EventsSuccessful int
	EventsFailed     int
	PagesWalked      int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

// ErrVerification reports a mismatch between the server and the local
// recomputation.
var ErrVerification = errors.New("verification failed")

const (
	defaultDays     = 90
	defaultPageSize = 100
	defaultWorkers  = 4
	defaultTimeout  = 30 * time.Second
	tokenTTL        = time.Hour
)

func (c *Config) normalize(now time.Time) {
	if c.Workers < 1 {
		c.Workers = defaultWorkers
	}
	if c.Days < 1 {
		c.Days = defaultDays
	}
	if c.PageSize < 1 {
		c.PageSize = defaultPageSize
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.End.IsZero() {
		c.End = now.UTC()
	}
	if c.Seed == 0 {
		c.Seed = uint64(now.UnixNano())
	}
}
