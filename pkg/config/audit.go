package config

import (
	"github.com/tendant/simple-ums/pkg/audit"
)

const (
	AuditSinkPostgres = "postgres"
	AuditSinkLog      = "log"
)

type AuditConfig struct {
	Workers     int    `env:"AUDIT_WORKERS" env-default:"4"`
	QueueSize   int    `env:"AUDIT_QUEUE_SIZE" env-default:"256"`
	Timeout     string `env:"AUDIT_TIMEOUT" env-default:"5s"`
	LogFailures bool   `env:"AUDIT_LOG_FAILURES" env-default:"false"`
	Sink        string `env:"AUDIT_SINK" env-default:"postgres"`
}

func (a AuditConfig) ToOptions() audit.Options {
	return audit.Options{
		Workers:     a.Workers,
		QueueSize:   a.QueueSize,
		Timeout:     mustDuration(a.Timeout, audit.DefaultTimeout),
		LogFailures: a.LogFailures,
	}
}
