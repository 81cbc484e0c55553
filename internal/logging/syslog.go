// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"fmt"
	"log/syslog"
)

// SyslogConfig configures the optional syslog fan-out sink.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string // "udp" or "tcp"
	Tag      string
	Facility int // RFC 5424 facility number
}

// DefaultSyslogConfig returns the disabled-by-default configuration.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "sessiond",
		Facility: 1, // user-level messages
	}
}

// SyslogWriter fans log lines out to a remote syslog collector.
type SyslogWriter struct {
	w *syslog.Writer
}

var facilityTable = map[int]syslog.Priority{
	0: syslog.LOG_KERN,
	1: syslog.LOG_USER,
	2: syslog.LOG_MAIL,
	3: syslog.LOG_DAEMON,
	4: syslog.LOG_AUTH,
	5: syslog.LOG_SYSLOG,
	16: syslog.LOG_LOCAL0,
	17: syslog.LOG_LOCAL1,
	18: syslog.LOG_LOCAL2,
	19: syslog.LOG_LOCAL3,
	20: syslog.LOG_LOCAL4,
	21: syslog.LOG_LOCAL5,
	22: syslog.LOG_LOCAL6,
	23: syslog.LOG_LOCAL7,
}

// NewSyslogWriter dials the configured syslog collector, applying defaults
// for any zero-valued fields.
func NewSyslogWriter(cfg SyslogConfig) (*SyslogWriter, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("logging: syslog host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 514
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Tag == "" {
		cfg.Tag = "sessiond"
	}

	priority, ok := facilityTable[cfg.Facility]
	if !ok {
		priority = syslog.LOG_USER
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	w, err := syslog.Dial(cfg.Protocol, addr, priority|syslog.LOG_INFO, cfg.Tag)
	if err != nil {
		return nil, fmt.Errorf("logging: dial syslog %s: %w", addr, err)
	}
	return &SyslogWriter{w: w}, nil
}

// Write implements io.Writer, satisfying the extraSink contract.
func (s *SyslogWriter) Write(p []byte) (int, error) {
	return len(p), s.w.Info(string(p))
}

// Close releases the underlying connection.
func (s *SyslogWriter) Close() error {
	return s.w.Close()
}
