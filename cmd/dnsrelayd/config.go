package main

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	dnsrelay "github.com/Cabonhydrate/DNS-Local-Server"
)

// fileConfig mirrors the on-disk TOML layout. Field names match the
// original JSON configuration's keys where they carry over, so an
// operator migrating a deployment recognizes the settings.
type fileConfig struct {
	LocalIP      string `toml:"local_ip"`
	LocalPort    int    `toml:"local_port"`
	DatabaseFile string `toml:"database_file"`
	LogFile      string `toml:"log_file"`
	CacheSize    int    `toml:"cache_size"`

	UpstreamDNS struct {
		IP   string `toml:"ip"`
		Port int    `toml:"port"`
	} `toml:"upstream_dns"`

	MinTTL              *uint32 `toml:"min_ttl"`
	MaxTTL              *uint32 `toml:"max_ttl"`
	OverrideTTL         *uint32 `toml:"override_ttl"`
	Workers             int     `toml:"workers"`
	QueryTimeoutSeconds int     `toml:"query_timeout_seconds"`
	MaxRetries          int     `toml:"max_retries"`
	NXDOMAINOnBlackhole bool    `toml:"nxdomain_on_blackhole"`
}

// loadFileConfig reads and decodes a TOML config file into a
// dnsrelay.Config seeded with defaults, so unset fields keep sane values.
func loadFileConfig(name string) (dnsrelay.Config, error) {
	cfg := dnsrelay.DefaultConfig()

	f, err := os.Open(name)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to open config file")
	}
	defer f.Close()

	var fc fileConfig
	if _, err := toml.DecodeReader(f, &fc); err != nil {
		return cfg, errors.Wrap(err, "failed to parse config file")
	}

	if fc.LocalIP != "" {
		cfg.LocalIP = fc.LocalIP
	}
	if fc.LocalPort != 0 {
		cfg.LocalPort = fc.LocalPort
	}
	cfg.DatabaseFile = fc.DatabaseFile
	if fc.LogFile != "" {
		cfg.LogFile = fc.LogFile
	}
	if fc.CacheSize != 0 {
		cfg.CacheCapacity = fc.CacheSize
	}
	cfg.UpstreamIP = fc.UpstreamDNS.IP
	if fc.UpstreamDNS.Port != 0 {
		cfg.UpstreamPort = fc.UpstreamDNS.Port
	}
	if fc.MinTTL != nil {
		cfg.MinTTL = *fc.MinTTL
	}
	if fc.MaxTTL != nil {
		cfg.MaxTTL = *fc.MaxTTL
	}
	if fc.OverrideTTL != nil {
		cfg.OverrideTTL = *fc.OverrideTTL
	}
	if fc.Workers != 0 {
		cfg.Workers = fc.Workers
	}
	if fc.QueryTimeoutSeconds != 0 {
		cfg.QueryTimeout = time.Duration(fc.QueryTimeoutSeconds) * time.Second
	}
	if fc.MaxRetries != 0 {
		cfg.MaxRetries = fc.MaxRetries
	}
	cfg.NXDOMAINOnBlackhole = fc.NXDOMAINOnBlackhole

	if cfg.UpstreamIP == "" {
		return cfg, errors.New("config file missing upstream_dns.ip")
	}
	return cfg, nil
}
