package config

import (
	"errors"
	"fmt"
)

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// All problems are reported, not just the first.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.BinPath == "" {
		errs = append(errs, ValidationError{
			Field:   "bin_path",
			Message: "relay binary path is required",
		})
	}

	switch cfg.Transport {
	case "tcp", "udp":
	default:
		errs = append(errs, ValidationError{
			Field:   "transport",
			Message: fmt.Sprintf("must be tcp or udp, got %q", cfg.Transport),
		})
	}

	if cfg.ConnectTimeoutMs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "connect_timeout_ms",
			Message: "must be positive",
		})
	}

	for _, p := range []struct {
		field string
		port  int
	}{
		{"port_plain", cfg.PortPlain},
		{"port_tls", cfg.PortTLS},
		{"port_mtls", cfg.PortMTLS},
		{"connect_port", cfg.ConnectPort},
		{"pty_port", cfg.PTYPort},
		{"socks_port", cfg.SocksPort},
		{"socks_listen_port", cfg.SocksListen},
	} {
		if p.port < 1 || p.port > 65535 {
			errs = append(errs, ValidationError{
				Field:   p.field,
				Message: fmt.Sprintf("port %d out of range", p.port),
			})
		}
	}

	// The watchdog must never be able to fire while a classification is
	// still legitimate.
	if cfg.Waits.WaitPositive <= 0 || cfg.Waits.WaitNegative <= 0 {
		errs = append(errs, ValidationError{
			Field:   "waits",
			Message: "wait windows must be positive",
		})
	}
	if cfg.Waits.DeadlinePositive <= cfg.Waits.WaitPositive {
		errs = append(errs, ValidationError{
			Field:   "deadline_positive",
			Message: fmt.Sprintf("deadline %s must exceed wait window %s",
				cfg.Waits.DeadlinePositive, cfg.Waits.WaitPositive),
		})
	}
	if cfg.Waits.DeadlineNegative <= cfg.Waits.WaitNegative {
		errs = append(errs, ValidationError{
			Field:   "deadline_negative",
			Message: fmt.Sprintf("deadline %s must exceed wait window %s",
				cfg.Waits.DeadlineNegative, cfg.Waits.WaitNegative),
		})
	}

	if cfg.HostPlain == "" || cfg.HostTLS == "" || cfg.HostMTLS == "" {
		errs = append(errs, ValidationError{
			Field:   "hosts",
			Message: "connect-mode hosts must not be empty",
		})
	}

	switch cfg.LogFormat {
	case "", "json", "text":
	default:
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be json or text, got %q", cfg.LogFormat),
		})
	}

	return errors.Join(errs...)
}
