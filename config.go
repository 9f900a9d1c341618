package dnsrelay

import "time"

// Config holds the runtime configuration of a Server, corresponding to
// the settings a deployment would normally pull from a TOML file plus
// command-line overrides.
type Config struct {
	// LocalIP/LocalPort is the address the server listens on for client
	// queries.
	LocalIP   string
	LocalPort int

	// UpstreamIP/UpstreamPort is the recursive resolver queries are
	// relayed to on a cache and override miss.
	UpstreamIP   string
	UpstreamPort int

	// DatabaseFile is the override rule file path, or empty for no local
	// overrides.
	DatabaseFile string

	// CacheCapacity bounds the number of distinct answers held in memory.
	CacheCapacity int
	// CacheSweepInterval controls how often expired cache entries are
	// swept in the background, independent of lookups.
	CacheSweepInterval time.Duration
	// MinTTL/MaxTTL clamp the TTL of upstream answers before caching.
	MinTTL uint32
	MaxTTL uint32
	// OverrideTTL is the TTL attached to locally-answered records.
	OverrideTTL uint32

	// QueryTimeout/MaxRetries tune the upstream relay.
	QueryTimeout time.Duration
	MaxRetries   int

	// Workers bounds the number of queries handled concurrently.
	Workers int

	// NXDOMAINOnBlackhole answers blackholed queries with NXDOMAIN instead
	// of the synthesized 0.0.0.0 / :: sentinel address.
	NXDOMAINOnBlackhole bool

	// LogLevel is one of "debug", "info", "warning", "error".
	LogLevel string
	// LogFile is a path to write logs to, "-" or empty for stderr, or a
	// "syslog://network/address" URL to log to syslog instead.
	LogFile string
}

// DefaultConfig returns a Config with every field at its documented
// default, ready for a caller to override selectively.
func DefaultConfig() Config {
	return Config{
		LocalIP:            "0.0.0.0",
		LocalPort:          53,
		UpstreamPort:       53,
		CacheCapacity:      DefaultCacheCapacity,
		CacheSweepInterval: DefaultSweepInterval,
		MinTTL:             DefaultMinTTL,
		MaxTTL:             DefaultMaxTTL,
		OverrideTTL:        DefaultOverrideTTL,
		QueryTimeout:       DefaultQueryTimeout,
		MaxRetries:         DefaultMaxRetries,
		Workers:            64,
		LogLevel:           "info",
	}
}
