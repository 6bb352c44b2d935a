package serve_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/poec-forensics/console/cmd/poec/config/profiles"
	"github.com/poec-forensics/console/cmd/poec/rest/mock"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	"github.com/poec-forensics/console/cmd/poec/subcommands/internal/commandline"
	"github.com/poec-forensics/console/cmd/poec/subcommands/logger"
	"github.com/poec-forensics/console/cmd/poec/subcommands/serve"
	ctxutil "github.com/poec-forensics/console/internal/testutils/context"
	"github.com/poec-forensics/console/pkg/liveness"
	"github.com/poec-forensics/console/pkg/metrics"
	"github.com/poec-forensics/console/pkg/utils/try"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/youta-t/flarc"
)

func TestRoutes(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Backend-Path", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"query":"`+r.URL.RawQuery+`"}`)
	}))
	defer backend.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	client := mock.Ready(t)
	core := try.To(common.NewCore(
		common.Console{
			Profile:     profiles.Profile{ApiRoot: backend.URL},
			Client:      client,
			JournalPath: ":memory:",
		},
		logger.Null(),
		common.WithMetrics(m),
	)).OrFatal(t)
	defer core.Close()
	core.Monitor.Probe(context.Background())

	e := echo.New()
	serve.Routes{
		Core:     core,
		Gatherer: reg,
		Backend:  try.To(url.Parse(backend.URL)).OrFatal(t),
		Client:   backend.Client(),
	}.Register(e)

	get := func(t *testing.T, target string) *httptest.ResponseRecorder {
		t.Helper()
		resp := httptest.NewRecorder()
		e.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))
		return resp
	}

	t.Run("healthz", func(t *testing.T) {
		resp := get(t, "/healthz")
		if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"state":"online"`) {
			t.Errorf("unexpected response: %d %s", resp.Code, resp.Body.String())
		}
	})

	t.Run("metrics", func(t *testing.T) {
		resp := get(t, "/metrics")
		if resp.Code != http.StatusOK {
			t.Fatalf("status code: %d", resp.Code)
		}
		if !strings.Contains(resp.Body.String(), `poec_liveness_probes_total{result="ok"} 1`) {
			t.Errorf("probes are not reported:\n%s", resp.Body.String())
		}
	})

	t.Run("verify", func(t *testing.T) {
		resp := get(t, "/verify/h3")
		if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"on_chain_hash":"0xh3"`) {
			t.Errorf("unexpected response: %d %s", resp.Code, resp.Body.String())
		}
	})

	t.Run("sessions", func(t *testing.T) {
		resp := get(t, "/sessions")
		if resp.Code != http.StatusOK || strings.TrimSpace(resp.Body.String()) != "[]" {
			t.Errorf("unexpected response: %d %s", resp.Code, resp.Body.String())
		}
	})

	t.Run("api is passed through", func(t *testing.T) {
		resp := get(t, "/api/v1/context?context_id=retail")
		if resp.Code != http.StatusOK {
			t.Fatalf("status code: %d", resp.Code)
		}
		if got := resp.Header().Get("X-Backend-Path"); got != "/api/v1/context" {
			t.Errorf("backend path: %s", got)
		}
		if got := resp.Body.String(); got != `{"query":"context_id=retail"}` {
			t.Errorf("body: %s", got)
		}
	})

	t.Run("healthz reset", func(t *testing.T) {
		resp := httptest.NewRecorder()
		e.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/healthz/reset", nil))
		if resp.Code != http.StatusAccepted || !strings.Contains(resp.Body.String(), `"state":"checking"`) {
			t.Errorf("unexpected response: %d %s", resp.Code, resp.Body.String())
		}
		if core.Monitor.Online() {
			t.Error("monitor is not reset")
		}
	})
}

func TestWatch(t *testing.T) {
	ctx, cancel := ctxutil.WithTest(context.Background(), t)
	defer cancel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	client := mock.Ready(t)
	mon := liveness.New(client, liveness.WithObserver(m.ObserveProbe))

	h := serve.Watch(ctx, mon, m, 10*time.Millisecond)

	deadline := time.After(5 * time.Second)
	for testutil.ToFloat64(m.Probes.WithLabelValues("ok")) < 3 {
		select {
		case <-deadline:
			t.Fatalf("the service is not checked again: %v probes", testutil.ToFloat64(m.Probes.WithLabelValues("ok")))
		case <-time.After(5 * time.Millisecond):
		}
	}

	h.Cancel()
	<-h.Done()
	if got := testutil.ToFloat64(m.Liveness); got != float64(liveness.Online) && got != float64(liveness.Checking) {
		t.Errorf("liveness gauge: %v", got)
	}
}

func TestWatch_Recheck(t *testing.T) {
	t.Run("the monitor stays online while the healthy service is rechecked", func(t *testing.T) {
		ctx, cancel := ctxutil.WithTest(context.Background(), t)
		defer cancel()

		entered := make(chan struct{})
		release := make(chan struct{})
		calls := 0
		client := mock.Ready(t)
		client.Impl.Ping = func(context.Context) error {
			calls += 1
			if calls == 2 {
				close(entered)
				<-release
			}
			return nil
		}
		mon := liveness.New(client)
		h := serve.Watch(ctx, mon, metrics.New(prometheus.NewRegistry()), 10*time.Millisecond)
		defer func() {
			h.Cancel()
			<-h.Done()
		}()

		select {
		case <-entered:
		case <-time.After(5 * time.Second):
			t.Fatal("the service is not rechecked")
		}
		if s := mon.Status(); s.State != liveness.Online {
			t.Errorf("monitor is %s while rechecking", s.State)
		}
		close(release)
	})

	t.Run("the offline monitor is left offline", func(t *testing.T) {
		ctx, cancel := ctxutil.WithTest(context.Background(), t)
		defer cancel()

		client := mock.Ready(t)
		client.Impl.Ping = func(context.Context) error { return errors.New("refused") }
		mon := liveness.New(client, liveness.WithMaxAttempts(1))
		h := serve.Watch(ctx, mon, metrics.New(prometheus.NewRegistry()), 10*time.Millisecond)

		time.Sleep(100 * time.Millisecond)
		h.Cancel()
		<-h.Done()

		if s := mon.Status(); s.State != liveness.Offline {
			t.Errorf("unexpected state: %s", s.State)
		}
		if client.Calls.Ping != 1 {
			t.Errorf("offline service is probed again: %d times", client.Calls.Ping)
		}
	})
}

func TestServeFlags(t *testing.T) {
	theory := func(flags serve.Flags) func(*testing.T) {
		return func(t *testing.T) {
			err := serve.Task(
				context.Background(), logger.Null(),
				common.Console{
					Profile: profiles.Profile{ApiRoot: "http://analysis.invalid"},
					Client:  mock.New(t),
				},
				commandline.MockCommandline[serve.Flags]{
					Stdout_: new(strings.Builder), Stderr_: new(strings.Builder),
					Flags_: flags,
				},
				nil,
			)
			if !errors.Is(err, flarc.ErrUsage) {
				t.Errorf("unexpected error: %v", err)
			}
		}
	}

	t.Run("non-positive recheck", theory(serve.Flags{Listen: ":0"}))
	t.Run("cert without key", theory(serve.Flags{Listen: ":0", Recheck: time.Second, Cert: "cert.pem"}))
}
