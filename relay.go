package dnsrelay

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Default relay tuning values from spec §4.4.
const (
	DefaultQueryTimeout = 5 * time.Second
	DefaultMaxRetries   = 3
)

// RelayOptions configures a Relay.
type RelayOptions struct {
	// Timeout is the per-attempt wait for an upstream response.
	Timeout time.Duration
	// MaxRetries is the total number of attempts per query, including the
	// first.
	MaxRetries int
}

type pendingQuery struct {
	ch chan []byte
}

// Relay forwards raw wire-format queries to a single upstream UDP resolver
// and correlates responses by transaction ID, since many client queries can
// be in flight concurrently. Outgoing queries are rewritten to a
// relay-owned transaction ID drawn from a free pool; a single goroutine
// reads the upstream socket and routes responses back to the waiting
// caller by that ID.
type Relay struct {
	opt      RelayOptions
	conn     *net.UDPConn
	upstream *net.UDPAddr
	log      Logger

	mu      sync.Mutex
	pending map[uint16]*pendingQuery
	nextID  uint16

	closed chan struct{}
}

// NewRelay opens a UDP socket for talking to upstream and starts the
// response-reading goroutine. The socket is not bound to a fixed local
// port, so the kernel assigns an ephemeral one; correlation with upstream
// happens purely via the transaction ID pool, not via per-query sockets
// (spec §4.4 permits either design).
func NewRelay(upstreamIP string, upstreamPort int, opt RelayOptions, log Logger) (*Relay, error) {
	if opt.Timeout <= 0 {
		opt.Timeout = DefaultQueryTimeout
	}
	if opt.MaxRetries <= 0 {
		opt.MaxRetries = DefaultMaxRetries
	}
	upstream := &net.UDPAddr{IP: net.ParseIP(upstreamIP), Port: upstreamPort}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open upstream relay socket")
	}
	r := &Relay{
		opt:      opt,
		conn:     conn,
		upstream: upstream,
		log:      log,
		pending:  make(map[uint16]*pendingQuery),
		closed:   make(chan struct{}),
	}
	go r.receiveLoop()
	return r, nil
}

// Forward sends rawQuery to the upstream resolver, rewriting its
// transaction ID to a relay-unique one for the duration of the exchange,
// and returns the raw upstream response with the original client
// transaction ID restored. It retries up to MaxRetries times with the same
// relay ID, waiting up to Timeout per attempt.
func (r *Relay) Forward(ctx context.Context, rawQuery []byte) ([]byte, error) {
	clientID, ok := MessageID(rawQuery)
	if !ok {
		return nil, errors.New("query too short to have a transaction id")
	}

	relayID, p, err := r.allocate()
	if err != nil {
		return nil, err
	}
	defer r.free(relayID)

	query := append([]byte(nil), rawQuery...)
	RewriteID(query, relayID)

	var lastErr error
	for attempt := 0; attempt < r.opt.MaxRetries; attempt++ {
		if _, err := r.conn.WriteToUDP(query, r.upstream); err != nil {
			return nil, errors.Wrap(err, "failed to send query upstream")
		}

		select {
		case resp := <-p.ch:
			RewriteID(resp, clientID)
			return resp, nil
		case <-time.After(r.opt.Timeout):
			lastErr = ErrTimeout
			if r.log != nil {
				r.log.Warningf("upstream query timed out, attempt %d/%d", attempt+1, r.opt.MaxRetries)
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.closed:
			return nil, errors.New("relay is closed")
		}
	}
	return nil, lastErr
}

// allocate claims a free 16-bit transaction ID for a new outgoing query.
// The pending-map and ID pool share a single mutex, per spec §5.
func (r *Relay) allocate() (uint16, *pendingQuery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) >= 1<<16 {
		return 0, nil, ErrRelayExhausted
	}
	for {
		id := r.nextID
		r.nextID++
		if _, taken := r.pending[id]; !taken {
			p := &pendingQuery{ch: make(chan []byte, 1)}
			r.pending[id] = p
			return id, p, nil
		}
	}
}

func (r *Relay) free(id uint16) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// receiveLoop is the single reader of the upstream socket. It routes each
// datagram to the pending query with a matching transaction ID, discarding
// anything else as a stray response.
func (r *Relay) receiveLoop() {
	buf := make([]byte, 65535)
	for {
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-r.closed:
				return
			default:
				if r.log != nil {
					r.log.Errorf("relay socket read failed: %v", err)
				}
				continue
			}
		}

		id, ok := MessageID(buf[:n])
		if !ok {
			continue
		}

		r.mu.Lock()
		p, found := r.pending[id]
		r.mu.Unlock()
		if !found {
			continue // stray datagram, transaction id not currently pending
		}

		resp := append([]byte(nil), buf[:n]...)
		select {
		case p.ch <- resp:
		default:
			// A response for this ID already arrived (e.g. a stray from an
			// earlier attempt beat the real one); drop the extra.
		}
	}
}

// Close shuts down the relay's upstream socket and unblocks any pending
// Forward calls.
func (r *Relay) Close() error {
	close(r.closed)
	return r.conn.Close()
}
