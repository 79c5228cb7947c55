// Command socks-server runs a standalone SOCKS4/4A/SOCKS5 proxy driven
// by the socksio engine, wiring the transport/net adapter, a prometheus
// metrics endpoint, and per-IP connection admission control around it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/latency-space/socksio/socksio"
	"github.com/latency-space/socksio/internal/config"
	"github.com/latency-space/socksio/internal/metrics"
	"github.com/latency-space/socksio/internal/ratelimit"
	"github.com/latency-space/socksio/internal/tlsutil"
	transportnet "github.com/latency-space/socksio/transport/net"

	"golang.org/x/time/rate"

	"github.com/latency-space/socksio/socks4"
	"github.com/latency-space/socksio/socks5"
)

// Server is the standalone SOCKS proxy process: an accept loop over a
// socksio.Dispatcher, a metrics HTTP endpoint, and an IP rate limiter.
type Server struct {
	cfg      *config.Config
	metrics  *metrics.Collector
	limiter  *ratelimit.IPLimiter
	listener net.Listener
	metricsH *http.Server
}

func NewServer(cfg *config.Config) *Server {
	return &Server{
		cfg:     cfg,
		metrics: metrics.NewCollector(),
		limiter: ratelimit.NewIPLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst),
	}
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
	}
	s.listener = ln
	log.Printf("socks-server: listening on %s", s.cfg.Listen)

	if s.cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())
		s.metricsH = &http.Server{Addr: s.cfg.MetricsListen, Handler: mux}
		if s.cfg.Autocert.Enabled {
			mgr := tlsutil.Manager(s.cfg.Autocert.CacheDir, s.cfg.Autocert.Email, s.cfg.Autocert.AllowHosts)
			s.metricsH.TLSConfig = tlsutil.Config(mgr)
			log.Printf("socks-server: autocert manager configured for hosts %s", strings.Join(s.cfg.Autocert.AllowHosts, ","))
		}
		go func() {
			var err error
			if s.metricsH.TLSConfig != nil {
				err = s.metricsH.ListenAndServeTLS("", "")
			} else {
				err = s.metricsH.ListenAndServe()
			}
			if err != nil && err != http.ErrServerClosed {
				log.Printf("socks-server: metrics server error: %v", err)
			}
		}()
		log.Printf("socks-server: metrics on %s/metrics", s.cfg.MetricsListen)
	}

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			wg.Wait()
			return nil
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	ip, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	if !s.limiter.Allow(ip) {
		log.Printf("socks-server: rejecting %s: rate limit exceeded", ip)
		return
	}

	policy := socksio.Policy{
		AllowedVersions:      s.cfg.VersionSet(),
		Username:             s.cfg.Username,
		Password:             s.cfg.Password,
		StrictSecurityPolicy: s.cfg.StrictSecurity(),
		Encoding:             s.cfg.TextEncoding(),
	}
	obs := s.metrics.NewObserver()
	dispatcher, err := socksio.NewDispatcher(policy,
		func(p socksio.Policy) socksio.StateMachine { obs.SetVersion(4); return socks4.NewServer(p) },
		func(p socksio.Policy) socksio.StateMachine { obs.SetVersion(5); return socks5.NewServer(p) },
	)
	if err != nil {
		log.Printf("socks-server: %v", err)
		return
	}

	adapter := transportnet.New(conn, 30*time.Second)
	adapter.OnBytes = s.metrics.AddBytes

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := socksio.Run(ctx, dispatcher, adapter, obs); err != nil {
		log.Printf("socks-server: connection from %s ended: %v", conn.RemoteAddr(), err)
	}
}

func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
	if s.metricsH != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.metricsH.Shutdown(ctx)
	}
}

// version is reported by -version, mirroring siosocks.__version__.
const version = "0.1.0"

// applyFlagOverrides layers CLI flags on top of a loaded config, mirroring
// siosocks.__main__'s argparse flags (--socks, --username, --password,
// --encoding, --no-strict). A flag only takes effect when set; an empty
// string or false leaves the config file's value untouched, except
// no-strict which is a one-way override (a config file cannot turn
// strict security back on once -no-strict is passed).
func applyFlagOverrides(cfg *config.Config, allowedVersions, username, password, encoding string, noStrict bool) {
	if allowedVersions != "" {
		var versions []int
		for _, part := range strings.Split(allowedVersions, ",") {
			v, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				log.Fatalf("socks-server: invalid -allowed-versions entry %q: %v", part, err)
			}
			versions = append(versions, v)
		}
		cfg.AllowedVersions = versions
	}
	if username != "" {
		cfg.Username = username
	}
	if password != "" {
		cfg.Password = password
	}
	if encoding != "" {
		cfg.Encoding = encoding
	}
	if noStrict {
		cfg.NoStrictSecurity = true
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML configuration file")
	testConfig := flag.Bool("t", false, "validate configuration and exit")
	showVersion := flag.Bool("version", false, "print the socks-server version and exit")
	allowedVersions := flag.String("allowed-versions", "", "comma-separated socks protocol versions, overrides the config file (e.g. \"4,5\")")
	username := flag.String("username", "", "socks auth username, overrides the config file")
	password := flag.String("password", "", "socks auth password, overrides the config file")
	encoding := flag.String("encoding", "", "string encoding (\"utf8\" or \"raw\"), overrides the config file")
	noStrict := flag.Bool("no-strict", false, "allow socks4 alongside username/password auth, overrides the config file")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("socks-server: %v", err)
	}
	applyFlagOverrides(cfg, *allowedVersions, *username, *password, *encoding, *noStrict)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("socks-server: %v", err)
	}
	if *testConfig {
		fmt.Println("configuration OK")
		return
	}

	server := NewServer(cfg)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Println("socks-server: received shutdown signal")
		server.Stop()
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("socks-server: %v", err)
	}
}
