package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/poec-forensics/console/cmd/poec/rest"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	"github.com/poec-forensics/console/pkg/echoutil"
	"github.com/poec-forensics/console/pkg/liveness"
	"github.com/poec-forensics/console/pkg/loop"
	"github.com/poec-forensics/console/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Listen   string        `flag:"listen" alias:"l" metavar:"[HOST]:PORT" help:"address to listen"`
	LogLevel string        `flag:"loglevel" metavar:"debug|info|warn|error|off" help:"log level of the http server"`
	Cert     string        `flag:"cert" metavar:"FILE" help:"certificate file for TLS"`
	CertKey  string        `flag:"certkey" metavar:"FILE" help:"key of the certificate for TLS"`
	Recheck  time.Duration `flag:"recheck" metavar:"DURATION" help:"interval to check liveness of the analysis service again"`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Serve the console over HTTP.",
		Flags{Listen: ":8080", LogLevel: "info", Recheck: 30 * time.Second},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Serve the session orchestrator for dashboards and scripts.

Endpoints:

	GET  /healthz          liveness of the analysis service (200 online, 503 otherwise)
	GET  /metrics          prometheus metrics
	GET  /verify/:hash     public lookup of an anchored result hash
	GET  /sessions         sessions in the journal. query "limit".
	POST /sessions         analyse a ledger file uploaded in the multipart field "file"
	*    /api/...          passed through to the analysis service

The server stops gracefully on interrupt.
`),
	)
}

// Routes are dependencies of the server.
type Routes struct {
	Core     *common.Core
	Gatherer prometheus.Gatherer

	// Backend is the root of the analysis service, and Client reaches it.
	Backend *url.URL
	Client  *http.Client
}

// Register routes on e.
func (r Routes) Register(e *echo.Echo) {
	e.GET("/healthz", HealthHandler(r.Core.Monitor))
	e.POST("/healthz/reset", ResetHealthHandler(r.Core.Monitor))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(r.Gatherer, promhttp.HandlerOpts{})))
	e.GET("/verify/:hash", VerifyHandler(r.Core.Proof, "hash"))
	if r.Core.Journal != nil {
		e.GET("/sessions", ListSessionsHandler(r.Core.Journal))
	}
	e.POST("/sessions", AnalyzeHandler(r.Core.Orchestrator))
	e.Any("/api/*", ProxyHandler(r.Client, r.Backend.JoinPath("api"), "/api"))
}

// Watch keeps the monitor checking the service, and reports liveness to m.
//
// The online service is checked again every interval.
// Only when the recheck fails, the monitor is run to settle again.
// An offline monitor stays offline until it is reset.
func Watch(ctx context.Context, mon *liveness.Monitor, m *metrics.Metrics, interval time.Duration) *loop.Handle[liveness.Status] {
	updates, unsubscribe := mon.Subscribe()
	go func() {
		for s := range updates {
			m.SetLiveness(s.State)
		}
	}()

	h := loop.Go(ctx, liveness.Status{}, func(ctx context.Context, _ liveness.Status) (liveness.Status, loop.Next) {
		s := mon.Recheck(ctx)
		if s.State != liveness.Checking {
			return s, loop.Continue(interval)
		}
		s, err := mon.Run(ctx)
		if err != nil {
			return s, loop.Break(err)
		}
		return s, loop.Continue(interval)
	})
	go func() {
		<-h.Done()
		unsubscribe()
	}()
	return h
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	console common.Console,
	cl flarc.Commandline[Flags],
	_ []any,
) error {
	flags := cl.Flags()
	if flags.Recheck <= 0 {
		return errors.Join(flarc.ErrUsage, errors.New("--recheck should be positive"))
	}
	if (flags.Cert == "") != (flags.CertKey == "") {
		return errors.Join(flarc.ErrUsage, errors.New("--cert and --certkey should be given together"))
	}
	backend, err := url.Parse(console.Profile.ApiRoot)
	if err != nil {
		return err
	}
	hc, err := rest.HTTPClient(&console.Profile)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	core, err := common.NewCore(console, logger, common.WithMetrics(m))
	if err != nil {
		return err
	}
	defer core.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	watching := Watch(ctx, core.Monitor, m, flags.Recheck)

	e := echo.New()
	e.HideBanner = true
	echoutil.SetLevel(e, flags.LogLevel)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		e.DefaultHTTPErrorHandler(err, c)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)
	Routes{Core: core, Gatherer: reg, Backend: backend, Client: hc}.Register(e)
	for _, r := range e.Routes() {
		logger.Debug("route", "method", r.Method, "path", r.Path)
	}

	served := make(chan error, 1)
	go func() {
		defer close(served)
		logger.Info("serving", "listen", flags.Listen, "service", console.Profile.ApiRoot)
		var err error
		if flags.Cert != "" {
			err = e.StartTLS(flags.Listen, flags.Cert, flags.CertKey)
		} else {
			err = e.Start(flags.Listen)
		}
		if !errors.Is(err, http.ErrServerClosed) {
			served <- err
		}
	}()

	select {
	case err := <-served:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	graceful, cancelGraceful := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelGraceful()
	if err := e.Shutdown(graceful); err != nil {
		return fmt.Errorf("error on shutdown: %w", err)
	}
	cancel()
	watching.Wait()
	return nil
}
