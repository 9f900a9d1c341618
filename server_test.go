package dnsrelay

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startTestUpstream(t *testing.T) (string, int, func()) {
	return startFakeUpstream(t, func(query []byte) []byte {
		req, err := Parse(query)
		if err != nil {
			return nil
		}
		q := req.Questions[0]
		answers := []RR{NewA(q.Name, 30, [4]byte{93, 184, 216, 34})}
		resp, _ := BuildResponse(req, answers, RcodeSuccess)
		return resp
	})
}

func buildQuery(id uint16, name string) []byte {
	req := &Message{Header: Header{ID: id, RD: true}, Questions: []Question{{Name: name, Type: TypeA, Class: ClassINET}}}
	raw, _ := BuildResponse(req, nil, RcodeSuccess)
	raw[2] &^= 0x80
	return raw
}

func startTestServer(t *testing.T) (*Server, string, int, func()) {
	upIP, upPort, stopUp := startTestUpstream(t)

	overrides, err := NewOverrideTable([]Rule{
		{Domain: "local.example.com", Type: TypeA, Target: "10.0.0.5"},
		{Domain: "blocked.example.com", Type: TypeA, Target: "blackhole"},
	}, 60)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.LocalIP = "127.0.0.1"
	cfg.LocalPort = 0
	cfg.UpstreamIP = upIP
	cfg.UpstreamPort = upPort
	cfg.QueryTimeout = time.Second

	srv, err := NewServer(cfg, overrides, NopLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)

	addr := srv.conn.LocalAddr().(*net.UDPAddr)
	stop := func() {
		cancel()
		stopUp()
	}
	return srv, addr.IP.String(), addr.Port, stop
}

func queryServer(t *testing.T, ip string, port int, id uint16, name string) *Message {
	t.Helper()
	conn, err := net.Dial("udp", net.JoinHostPort(ip, strconv.Itoa(port)))
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	_, err = conn.Write(buildQuery(id, name))
	require.NoError(t, err)

	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	require.NoError(t, err)

	resp, err := Parse(buf[:n])
	require.NoError(t, err)
	return resp
}

func TestServerAnswersFromOverride(t *testing.T) {
	_, ip, port, stop := startTestServer(t)
	defer stop()

	resp := queryServer(t, ip, port, 1, "local.example.com")
	require.Equal(t, uint8(RcodeSuccess), resp.Header.Rcode)
	require.Len(t, resp.Answer, 1)
	addr, ok := resp.Answer[0].A()
	require.True(t, ok)
	require.Equal(t, [4]byte{10, 0, 0, 5}, addr)
}

func TestServerBlackholes(t *testing.T) {
	_, ip, port, stop := startTestServer(t)
	defer stop()

	resp := queryServer(t, ip, port, 2, "blocked.example.com")
	require.Len(t, resp.Answer, 1)
	addr, ok := resp.Answer[0].A()
	require.True(t, ok)
	require.Equal(t, [4]byte{0, 0, 0, 0}, addr)
}

func TestServerForwardsToUpstreamAndCaches(t *testing.T) {
	srv, ip, port, stop := startTestServer(t)
	defer stop()

	resp := queryServer(t, ip, port, 3, "unknown.example.com")
	require.Equal(t, uint8(RcodeSuccess), resp.Header.Rcode)
	require.Len(t, resp.Answer, 1)

	require.Eventually(t, func() bool {
		return srv.cache.Size() > 0
	}, time.Second, 10*time.Millisecond)
}

func TestServerHandlesManyConcurrentClients(t *testing.T) {
	_, ip, port, stop := startTestServer(t)
	defer stop()

	const clients = 20
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(id uint16) {
			defer wg.Done()
			resp := queryServer(t, ip, port, id, "concurrent.example.com")
			require.Equal(t, id, resp.Header.ID)
			require.Equal(t, uint8(RcodeSuccess), resp.Header.Rcode)
		}(uint16(1000 + i))
	}
	wg.Wait()
}
