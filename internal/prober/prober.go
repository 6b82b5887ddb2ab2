// Package prober checks which connecting domains accept TCP connections.
package prober

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"vpnprofile/internal/config"
	"vpnprofile/internal/logger"
	"vpnprofile/internal/metrics"
	"vpnprofile/internal/protocol"
	"vpnprofile/internal/servers"
)

const retryBackoff = 200 * time.Millisecond

// Target is one domain endpoint to dial.
type Target struct {
	ServerID   string
	ServerName string
	DomainID   string
	Protocol   protocol.Selection
	Address    string
}

// Outcome is the result of probing one Target.
type Outcome struct {
	Target
	Reachable bool
	Latency   time.Duration
	Attempts  int
	Err       error
	// Cancelled is set when the run was stopped before the target settled.
	Cancelled bool
}

type Prober struct {
	cfg     config.ProberConfig
	dialer  proxy.ContextDialer
	metrics *metrics.Collector
}

// New builds a prober. When cfg.ProxyURL is set every dial goes through
// that proxy (socks5://host:port). mc may be nil.
func New(cfg config.ProberConfig, mc *metrics.Collector) (*Prober, error) {
	var dialer proxy.ContextDialer = &net.Dialer{}
	if cfg.ProxyURL != "" {
		u, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		d, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("unsupported proxy %s: %w", cfg.ProxyURL, err)
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("proxy %s does not support cancellation", cfg.ProxyURL)
		}
		dialer = cd
		logger.For("prober").Infof("Probing through proxy: %s", u.Host)
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	return &Prober{cfg: cfg, dialer: dialer, metrics: mc}, nil
}

// Targets lists one endpoint per domain of the given servers. UDP
// protocols cannot be checked with a TCP dial, so the first stream
// protocol the domain supports is used, smart protocols first.
func Targets(list []servers.Server, smart protocol.SmartProtocols) []Target {
	var out []Target
	for _, s := range list {
		for _, d := range s.Domains {
			sel, ok := streamProtocol(d, smart)
			addr := d.EntryIP
			port := 443
			if ok {
				addr = d.EntryIPFor(sel)
				port = sel.Port()
			} else {
				sel = protocol.Smart
			}
			if addr == "" {
				addr = d.EntryDomain
			}
			if addr == "" {
				continue
			}
			out = append(out, Target{
				ServerID:   s.ID,
				ServerName: s.Name,
				DomainID:   d.ID,
				Protocol:   sel,
				Address:    net.JoinHostPort(addr, strconv.Itoa(port)),
			})
		}
	}
	return out
}

func streamProtocol(d servers.ConnectingDomain, smart protocol.SmartProtocols) (protocol.Selection, bool) {
	for _, list := range [][]protocol.Selection{smart, protocol.Concrete} {
		for _, sel := range list {
			if sel.Transmission == protocol.UDP {
				continue
			}
			if d.SupportsProtocol(sel) {
				return sel, true
			}
		}
	}
	return protocol.Selection{}, false
}

// Run probes every target with cfg.WorkerCount workers. done, when not nil,
// is called once per finished target from the worker goroutines. Outcomes
// are returned in target order.
func (p *Prober) Run(ctx context.Context, targets []Target, done func(Outcome)) []Outcome {
	results := make([]Outcome, len(targets))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.cfg.WorkerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.Probe(ctx, targets[i])
				if done != nil {
					done(results[i])
				}
			}
		}()
	}

feed:
	for i := range targets {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(targets); j++ {
				results[j] = Outcome{Target: targets[j], Err: ctx.Err(), Cancelled: true}
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

// Probe dials t up to cfg.Retries+1 times.
func (p *Prober) Probe(ctx context.Context, t Target) Outcome {
	out := Outcome{Target: t}
	for attempt := 0; attempt <= p.cfg.Retries; attempt++ {
		out.Attempts = attempt + 1
		latency, err := p.dial(ctx, t.Address)
		if err == nil {
			out.Reachable = true
			out.Latency = latency
			out.Err = nil
			if p.metrics != nil {
				p.metrics.RecordSuccess(attempt, latency)
			}
			return out
		}
		out.Err = err
		if ctx.Err() != nil {
			out.Cancelled = true
			return out
		}
		if p.metrics != nil {
			p.metrics.RecordFailure(err)
		}
		if attempt < p.cfg.Retries {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				out.Cancelled = true
				return out
			}
		}
	}
	logger.For("prober").Debugf("%s (%s) unreachable: %v", t.DomainID, t.Address, out.Err)
	return out
}

func (p *Prober) dial(ctx context.Context, addr string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, err
	}
	latency := time.Since(start)
	conn.Close()
	return latency, nil
}

// Apply stores the probe results as domain online flags and returns how
// many domains were updated. Cancelled probes are ignored.
func Apply(c *servers.Catalog, outcomes []Outcome) int {
	updated := 0
	for _, o := range outcomes {
		if o.Cancelled {
			continue
		}
		if c.SetDomainOnline(o.DomainID, o.Reachable) {
			updated++
		}
	}
	return updated
}
