package proxy

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Selector picks the proxy a new browser session should use
type Selector interface {
	Fastest(ctx context.Context) (string, error)
}

// Info holds a candidate proxy and its last health check
type Info struct {
	Server   string        `json:"server"`
	Latency  time.Duration `json:"latency"`
	LastTest time.Time     `json:"last_test"`
	Working  bool          `json:"working"`
}

// Pool ranks a fixed list of proxy servers by handshake latency
type Pool struct {
	candidates     []string
	proxies        []Info
	mutex          sync.Mutex
	lastUpdate     time.Time
	updateInterval time.Duration
	dialTimeout    time.Duration
	now            func() time.Time
}

// NewPool creates a pool over servers given as scheme://host:port or host:port.
// Bare host:port entries are treated as socks5.
func NewPool(servers []string, updateInterval time.Duration) *Pool {
	candidates := make([]string, 0, len(servers))
	for _, s := range servers {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !strings.Contains(s, "://") {
			s = "socks5://" + s
		}
		candidates = append(candidates, s)
	}
	return &Pool{
		candidates:     candidates,
		updateInterval: updateInterval,
		dialTimeout:    5 * time.Second,
		now:            time.Now,
	}
}

// Update checks every candidate when the cached ranking is stale
func (p *Pool) Update(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.proxies) > 0 && p.now().Sub(p.lastUpdate) < p.updateInterval {
		return nil
	}
	if len(p.candidates) == 0 {
		return fmt.Errorf("no proxy candidates configured")
	}

	results := make([]Info, len(p.candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, server := range p.candidates {
		g.Go(func() error {
			results[i] = p.check(gctx, server)
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Working != results[j].Working {
			return results[i].Working
		}
		return results[i].Latency < results[j].Latency
	})
	p.proxies = results
	p.lastUpdate = p.now()

	working := 0
	for _, r := range results {
		if r.Working {
			working++
		}
	}
	log.Info().
		Int("candidates", len(results)).
		Int("working", working).
		Msg("Proxy pool updated")
	return nil
}

// Fastest returns the lowest-latency working server
func (p *Pool) Fastest(ctx context.Context) (string, error) {
	if err := p.Update(ctx); err != nil {
		return "", err
	}
	top := p.Top(1)
	if len(top) == 0 {
		return "", fmt.Errorf("no working proxies among %d candidates", len(p.candidates))
	}
	return top[0].Server, nil
}

// Top returns up to n working proxies, fastest first
func (p *Pool) Top(n int) []Info {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var out []Info
	for _, info := range p.proxies {
		if !info.Working || len(out) == n {
			break
		}
		out = append(out, info)
	}
	return out
}

func (p *Pool) check(ctx context.Context, server string) Info {
	info := Info{Server: server, Latency: time.Hour, LastTest: p.now()}

	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		log.Debug().Str("proxy", server).Msg("Unparseable proxy address")
		return info
	}

	dialer := net.Dialer{Timeout: p.dialTimeout}
	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		log.Debug().Str("proxy", server).Err(err).Msg("TCP connection failed")
		return info
	}
	defer conn.Close()

	if strings.HasPrefix(u.Scheme, "socks5") && !socks5Handshake(conn) {
		log.Debug().Str("proxy", server).Msg("SOCKS5 handshake failed")
		return info
	}

	info.Working = true
	info.Latency = time.Since(start)
	log.Debug().
		Str("proxy", server).
		Dur("latency", info.Latency).
		Msg("Proxy working")
	return info
}

// socks5Handshake sends a no-auth greeting and expects it accepted
func socks5Handshake(conn net.Conn) bool {
	conn.SetDeadline(time.Now().Add(3 * time.Second))
	defer conn.SetDeadline(time.Time{})

	// VER=5, NMETHODS=1, METHODS=0 (no authentication)
	if _, err := conn.Write([]byte{0x05, 0x01, 0x00}); err != nil {
		return false
	}
	resp := make([]byte, 2)
	if _, err := conn.Read(resp); err != nil {
		return false
	}
	return resp[0] == 0x05 && resp[1] == 0x00
}
