package dnsrelay

import (
	"context"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Server is the concurrent DNS relay: it binds a UDP socket, answers from
// its override table and cache where possible, and otherwise forwards to
// upstream via a Relay. Concurrent queries are bounded by a worker
// semaphore so a burst of traffic can't spawn unbounded goroutines.
type Server struct {
	conn  *net.UDPConn
	cache *Cache
	relay *Relay
	log   Logger
	cfg   Config

	overrides atomic.Value // *OverrideTable

	sem chan struct{}
	wg  sync.WaitGroup
}

// NewServer binds the configured local address and wires up the cache,
// override table and relay it will use to answer queries. overrides may
// be nil, meaning no local rules are configured.
func NewServer(cfg Config, overrides *OverrideTable, log Logger) (*Server, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(cfg.LocalIP), Port: cfg.LocalPort}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to bind local listener")
	}

	relay, err := NewRelay(cfg.UpstreamIP, cfg.UpstreamPort, RelayOptions{
		Timeout:    cfg.QueryTimeout,
		MaxRetries: cfg.MaxRetries,
	}, log)
	if err != nil {
		conn.Close()
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 64
	}

	if overrides == nil {
		overrides, _ = NewOverrideTable(nil, cfg.OverrideTTL)
	}

	s := &Server{
		conn:  conn,
		cache: NewCache(cfg.CacheCapacity, cfg.CacheSweepInterval, log),
		relay: relay,
		log:   log,
		cfg:   cfg,
		sem:   make(chan struct{}, workers),
	}
	s.overrides.Store(overrides)
	return s, nil
}

// SetOverrides atomically swaps the override table in use, e.g. after a
// rule file reload triggered by a SIGHUP.
func (s *Server) SetOverrides(t *OverrideTable) {
	s.overrides.Store(t)
}

func (s *Server) currentOverrides() *OverrideTable {
	return s.overrides.Load().(*OverrideTable)
}

// Serve reads datagrams until ctx is cancelled, dispatching each to
// handleQuery in its own goroutine bounded by the worker semaphore. It
// blocks until every in-flight handler has returned.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	buf := make([]byte, 65535)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				s.log.Errorf("failed to read from client socket: %v", err)
				continue
			}
		}

		query := append([]byte(nil), buf[:n]...)

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			s.wg.Wait()
			return nil
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			s.handleQuery(ctx, query, addr)
		}()
	}
}

// Close stops the relay and cache sweeper and releases the local socket.
// Serve's own context cancellation is the caller's responsibility.
func (s *Server) Close() error {
	s.cache.Stop()
	s.relay.Close()
	return s.conn.Close()
}

// handleQuery implements the resolution pipeline: parse, cache lookup,
// override lookup, relay forward, in that priority order, with SERVFAIL
// on any failure along the way.
func (s *Server) handleQuery(ctx context.Context, raw []byte, addr *net.UDPAddr) {
	id, idOK := MessageID(raw)

	req, err := Parse(raw)
	if err != nil {
		s.log.Warningf("malformed query from %s: %v", addr, err)
		if idOK {
			s.reply(addr, FormatError(id))
		}
		return
	}

	if len(req.Questions) == 0 {
		s.reply(addr, FormatError(req.Header.ID))
		return
	}
	q := req.Questions[0]
	key := cacheKey{name: strings.ToLower(strings.TrimSuffix(q.Name, ".")), qtype: q.Type, class: q.Class}

	s.log.Debugf("query from %s: %s %s", addr, TypeName(q.Type), q.Name)

	if answers, rcode, hit := s.cache.Get(key, time.Now()); hit {
		resp, err := BuildResponse(req, answers, rcode)
		if err != nil {
			s.log.Errorf("failed to build cached response: %v", err)
			s.reply(addr, ServFail(req))
			return
		}
		s.reply(addr, resp)
		return
	}

	if answers, blackhole, ok := s.currentOverrides().Resolve(q.Name, q.Type); ok {
		if blackhole {
			s.log.Debugf("blackhole match for %s", q.Name)
			if s.cfg.NXDOMAINOnBlackhole {
				s.cache.Put(key, nil, RcodeNameError, s.cfg.OverrideTTL, time.Now())
				s.reply(addr, mustBuild(req, nil, RcodeNameError))
				return
			}
			rr, has := BlackholeAddress(q.Name, q.Type, s.cfg.OverrideTTL)
			if !has {
				s.cache.Put(key, nil, RcodeSuccess, s.cfg.OverrideTTL, time.Now())
				s.reply(addr, mustBuild(req, nil, RcodeSuccess))
				return
			}
			s.cache.Put(key, []RR{rr}, RcodeSuccess, s.cfg.OverrideTTL, time.Now())
			s.reply(addr, mustBuild(req, []RR{rr}, RcodeSuccess))
			return
		}
		s.log.Debugf("override match for %s: %d answer(s)", q.Name, len(answers))
		s.cache.Put(key, answers, RcodeSuccess, s.cfg.OverrideTTL, time.Now())
		s.reply(addr, mustBuild(req, answers, RcodeSuccess))
		return
	}

	resp, err := s.relay.Forward(ctx, raw)
	if err != nil {
		s.log.Warningf("upstream query failed for %s: %v", q.Name, err)
		s.reply(addr, ServFail(req))
		return
	}

	if parsed, err := Parse(resp); err == nil && parsed.Header.Rcode == RcodeSuccess && len(parsed.Answer) > 0 {
		if ttl, ok := MinTTL(parsed.Answer); ok {
			clamped := ClampTTL(ttl, s.cfg.MinTTL, s.cfg.MaxTTL)
			s.cache.Put(key, parsed.Answer, RcodeSuccess, clamped, time.Now())
		}
	}

	s.reply(addr, resp)
}

func (s *Server) reply(addr *net.UDPAddr, resp []byte) {
	if resp == nil {
		return
	}
	if _, err := s.conn.WriteToUDP(resp, addr); err != nil {
		s.log.Errorf("failed to write response to %s: %v", addr, err)
	}
}

func mustBuild(req *Message, answers []RR, rcode uint8) []byte {
	resp, err := BuildResponse(req, answers, rcode)
	if err != nil {
		return ServFail(req)
	}
	return resp
}
