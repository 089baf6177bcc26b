package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/inletd/inlet/internal/queue"
)

// cronParser accepts the standard five-field cron format used by the
// maintenance scheduler.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate checks the structural validity of a Config.
// It verifies the version field, the server listen address, queue modes
// and drop policies (global and per channel), the forward target, the
// summary provider, and the maintenance cron expressions.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	errs = append(errs, validateServer(cfg.Server)...)
	errs = append(errs, validateQueue(cfg.Queue)...)
	errs = append(errs, validateForward(cfg.Forward)...)
	errs = append(errs, validateSummary(cfg.Summary)...)
	errs = append(errs, validateMaintenance(cfg.Maintenance)...)
	errs = append(errs, validateTracing(cfg.Tracing)...)

	return errors.Join(errs...)
}

func validateServer(srv ServerConfig) []error {
	var errs []error
	if srv.Listen != "" {
		if _, _, err := net.SplitHostPort(srv.Listen); err != nil {
			errs = append(errs, fmt.Errorf("config: server.listen %q is not a host:port address: %w", srv.Listen, err))
		}
	}
	return errs
}

func validateQueue(q QueueConfig) []error {
	var errs []error

	errs = append(errs, validateQueueFields("queue", q.Mode, q.DropPolicy, q.Debounce, q.Cap)...)

	for name, ch := range q.Channels {
		if name == "" {
			errs = append(errs, errors.New("config: queue.channels key must not be empty"))
			continue
		}
		prefix := fmt.Sprintf("queue.channels.%s", name)
		errs = append(errs, validateQueueFields(prefix, ch.Mode, ch.DropPolicy, ch.Debounce, ch.Cap)...)
	}

	if q.MaxIdle < 0 {
		errs = append(errs, fmt.Errorf("config: queue.max_idle must not be negative, got %s", q.MaxIdle))
	}

	return errs
}

// validateQueueFields checks one settings layer (global or per channel).
func validateQueueFields(prefix, mode, policy string, debounce *time.Duration, capacity *int) []error {
	var errs []error

	if mode != "" {
		if _, ok := queue.ParseMode(mode); !ok {
			errs = append(errs, fmt.Errorf("config: %s.mode: unknown mode %q", prefix, mode))
		}
	}
	if policy != "" {
		if _, ok := queue.ParseDropPolicy(policy); !ok {
			errs = append(errs, fmt.Errorf("config: %s.drop_policy: unknown policy %q", prefix, policy))
		}
	}
	if debounce != nil && *debounce < 0 {
		errs = append(errs, fmt.Errorf("config: %s.debounce must not be negative, got %s", prefix, *debounce))
	}
	if capacity != nil && *capacity < 0 {
		errs = append(errs, fmt.Errorf("config: %s.cap must not be negative, got %d", prefix, *capacity))
	}

	return errs
}

func validateForward(f ForwardConfig) []error {
	var errs []error

	if f.BaseURL == "" {
		errs = append(errs, errors.New("config: forward.base_url is required"))
	} else {
		u, err := url.Parse(f.BaseURL)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("config: forward.base_url: %w", err))
		case u.Scheme != "http" && u.Scheme != "https":
			errs = append(errs, fmt.Errorf("config: forward.base_url must use http or https, got %q", f.BaseURL))
		case u.Host == "":
			errs = append(errs, fmt.Errorf("config: forward.base_url is missing a host: %q", f.BaseURL))
		}
	}

	return errs
}

func validateSummary(s SummaryConfig) []error {
	switch s.Provider {
	case "", "truncate", "anthropic":
		return nil
	default:
		return []error{fmt.Errorf("config: summary.provider must be \"truncate\" or \"anthropic\", got %q", s.Provider)}
	}
}

func validateMaintenance(m MaintenanceConfig) []error {
	var errs []error

	if m.Prune != "" {
		if _, err := cronParser.Parse(m.Prune); err != nil {
			errs = append(errs, fmt.Errorf("config: maintenance.prune: invalid cron expression %q: %w", m.Prune, err))
		}
	}
	if m.JournalSweep != "" {
		if _, err := cronParser.Parse(m.JournalSweep); err != nil {
			errs = append(errs, fmt.Errorf("config: maintenance.journal_sweep: invalid cron expression %q: %w", m.JournalSweep, err))
		}
	}

	return errs
}

func validateTracing(t TracingConfig) []error {
	if t.Sample > 1 {
		return []error{fmt.Errorf("config: tracing.sample must be between 0 and 1, got %g", t.Sample)}
	}
	return nil
}
