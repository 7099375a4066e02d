// Command pooldemo is an example consumer of the connection pool: it opens
// a pool against the configured database, runs a demonstration query that
// retries on deadlock, and serves the pool's health and usage counters
// over a small admin API.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"dbpool/pkg/config"
	"dbpool/pkg/dbclient"
	"dbpool/pkg/health"
	"dbpool/pkg/logger"
	"dbpool/pkg/pool"
)

func main() {
	configPath := flag.String("config", "", "Config file path (optional)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	logFormat := flag.String("log-format", "", "Log format: text or json (overrides config)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	logger.Init(logger.LogLevel(cfg.Logging.Level), cfg.Logging.Format)
	log := logger.Get()
	log.InfoWith("starting pooldemo", "config", cfg.String())

	client, err := dbclient.New(cfg.Database)
	if err != nil {
		log.ErrorWithErr("unsupported database backend", err)
		os.Exit(1)
	}

	p, err := pool.New(client, pool.Config{
		Capacity:        cfg.Pool.Capacity,
		SlotLockTimeout: time.Duration(cfg.Pool.SlotLockTimeoutSeconds) * time.Second,
	})
	if err != nil {
		log.ErrorWithErr("pool construction failed", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p.ThreadInit()
	defer p.ThreadEnd()

	if err := p.Open(ctx, dbclient.Params(cfg.Database)); err != nil {
		log.ErrorWith("cannot open pool", "error", err, "last_error", p.LastError())
		os.Exit(1)
	}
	defer func() {
		if !p.IsClosed() {
			if err := p.Close(); err != nil {
				log.ErrorWithErr("pool close failed", err)
			}
		}
	}()

	if err := runExampleQuery(ctx, p, cfg.Database.Type); err != nil {
		log.ErrorWithErr("example query failed", err)
	}

	monitor := health.NewMonitor()
	go watchPool(ctx, p, monitor)

	if cfg.Admin.Enabled {
		go serveAdmin(cfg.Admin.Address, p, monitor, log)
	}

	<-ctx.Done()
	log.InfoWith("shutting down")
}

// runExampleQuery borrows a handle, inserts a row, and returns the handle.
// A deadlock is retried once after a small random backoff; any other query
// error triggers a liveness ping so a lost connection reconnects before
// the next use.
func runExampleQuery(ctx context.Context, p *pool.Pool, dbType string) error {
	h, err := p.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer p.Release(h)

	conn := h.(*dbclient.Conn)

	ddl := "CREATE TABLE IF NOT EXISTS example (id INTEGER PRIMARY KEY AUTO_INCREMENT, name TEXT)"
	if dbType == "sqlite" {
		ddl = "CREATE TABLE IF NOT EXISTS example (id INTEGER PRIMARY KEY, name TEXT)"
	}
	if _, err := conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	if _, err := conn.Exec(ctx, "INSERT INTO example (name) VALUES (?)", "example"); err != nil {
		if !dbclient.IsDeadlock(err) {
			// Ping so the client reconnects a lost connection in place.
			if perr := p.Ping(ctx, h); perr != nil {
				return fmt.Errorf("insert: %v (ping: %w)", err, perr)
			}
			return fmt.Errorf("insert: %w", err)
		}

		// Deadlock: wait a small random amount of time (up to 1s) and retry.
		time.Sleep(time.Duration(rand.Intn(1000)) * time.Millisecond)
		if _, err := conn.Exec(ctx, "INSERT INTO example (name) VALUES (?)", "example"); err != nil {
			return fmt.Errorf("insert retry: %w", err)
		}
	}
	return nil
}

// watchPool keeps the health monitor's pool component current.
func watchPool(ctx context.Context, p *pool.Pool, monitor *health.Monitor) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		updatePoolHealth(ctx, p, monitor)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func updatePoolHealth(ctx context.Context, p *pool.Pool, monitor *health.Monitor) {
	stats := p.Stats()
	if !p.IsOpen() {
		monitor.SetComponentStatusWithDetails("pool", health.StatusUnhealthy, p.LastError(), stats)
		return
	}

	// Borrow a handle briefly and ping through it. All handles busy is
	// not an error; the pool is just saturated.
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	h, err := p.Acquire(probeCtx)
	if err != nil {
		monitor.SetComponentStatusWithDetails("pool", health.StatusDegraded, "all handles busy", stats)
		return
	}
	defer p.Release(h)

	if err := p.Ping(probeCtx, h); err != nil {
		monitor.SetComponentStatusWithDetails("pool", health.StatusDegraded, err.Error(), stats)
		return
	}
	monitor.SetComponentStatusWithDetails("pool", health.StatusHealthy, "", p.Stats())
}

// serveAdmin exposes the health report and pool counters.
func serveAdmin(addr string, p *pool.Pool, monitor *health.Monitor, log *logger.Logger) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	router.GET("/healthz", func(c *gin.Context) {
		report := monitor.GetReport()
		status := http.StatusOK
		if report.Status == health.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	})

	router.GET("/pool/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, p.Stats())
	})

	log.InfoWith("admin API listening", "addr", addr)
	if err := router.Run(addr); err != nil {
		log.ErrorWithErr("admin API stopped", err)
	}
}
