package status_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/poec-forensics/console/cmd/poec/config/profiles"
	"github.com/poec-forensics/console/cmd/poec/rest/mock"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	"github.com/poec-forensics/console/cmd/poec/subcommands/internal/commandline"
	"github.com/poec-forensics/console/cmd/poec/subcommands/logger"
	"github.com/poec-forensics/console/cmd/poec/subcommands/status"
	apicontexts "github.com/poec-forensics/console/pkg/api/types/contexts"
	apiproof "github.com/poec-forensics/console/pkg/api/types/proof"
	"github.com/poec-forensics/console/pkg/liveness"
	"github.com/poec-forensics/console/pkg/pipeline"
)

func TestWakeProgress(t *testing.T) {
	type when struct {
		status      liveness.Status
		maxAttempts int
	}
	theory := func(when when, then int64) func(*testing.T) {
		return func(t *testing.T) {
			if got := status.WakeProgress(when.status, when.maxAttempts); got != then {
				t.Errorf("progress: (actual, expected) = (%d, %d)", got, then)
			}
		}
	}

	t.Run("When nothing is tried yet, Then it is 0", theory(
		when{status: liveness.Status{State: liveness.Checking}, maxAttempts: 10},
		0,
	))
	t.Run("When some attempts failed, Then it grows", theory(
		when{status: liveness.Status{State: liveness.Checking, Attempts: 5}, maxAttempts: 10},
		47,
	))
	t.Run("When all attempts failed, Then it stalls at 95", theory(
		when{status: liveness.Status{State: liveness.Offline, Attempts: 10}, maxAttempts: 10},
		95,
	))
	t.Run("When attempts exceed the maximum, Then it stalls at 95", theory(
		when{status: liveness.Status{State: liveness.Checking, Attempts: 30}, maxAttempts: 10},
		95,
	))
	t.Run("When the service is online, Then it is 100", theory(
		when{status: liveness.Status{State: liveness.Online, Attempts: 3}, maxAttempts: 10},
		100,
	))
	t.Run("When max attempts is not positive, Then it is taken as 1", theory(
		when{status: liveness.Status{State: liveness.Checking, Attempts: 1}, maxAttempts: 0},
		95,
	))
}

func TestStatusCommand(t *testing.T) {
	type when struct {
		wait bool
		ping error
	}
	type then struct {
		err    error
		stdout []string
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			client := mock.New(t)
			client.Impl.Ping = func(context.Context) error { return when.ping }
			client.Impl.GetContexts = func(context.Context) (apicontexts.Profiles, error) {
				return apicontexts.Profiles{
					Active:    apicontexts.Active{ContextId: "ctx-1"},
					Available: map[string]string{"ctx-1": "Retail banking", "ctx-2": "Crypto"},
				}, nil
			}
			client.Impl.LedgerStatus = func(context.Context) (apiproof.LedgerStatus, error) {
				return apiproof.LedgerStatus{
					Status: "connected", Network: "sepolia",
					WalletAddress: "0xwallet", BalanceEth: 0.5,
				}, nil
			}

			stdout := new(strings.Builder)
			task := status.Task(status.WithProgressOut(new(strings.Builder)))
			err := task(
				context.Background(), logger.Null(),
				common.Console{
					Profile: profiles.Profile{
						ApiRoot: "http://analysis.invalid",
						Probe: profiles.Probe{
							Attempts: 2, Interval: time.Millisecond, Backoff: "static",
						},
					},
					Client: client,
				},
				commandline.MockCommandline[status.Flags]{
					Fullname_: "poec status",
					Stdout_:   stdout,
					Stderr_:   new(strings.Builder),
					Flags_:    status.Flags{Wait: when.wait},
					Args_:     map[string][]string{},
				},
				nil,
			)

			if then.err == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			} else if !errors.Is(err, then.err) {
				t.Fatalf("error: (actual, expected) = (%v, %v)", err, then.err)
			}
			for _, line := range then.stdout {
				if !strings.Contains(stdout.String(), line) {
					t.Errorf("stdout does not contain %q:\n%s", line, stdout.String())
				}
			}
		}
	}

	t.Run("When the service is online, Then it shows context and ledger", theory(
		when{},
		then{stdout: []string{
			"service: http://analysis.invalid (online)",
			"context: ctx-1 (Retail banking)",
			"ledger:  connected on sepolia",
			"wallet:   0xwallet",
		}},
	))
	t.Run("When it waits for the online service, Then it shows context and ledger", theory(
		when{wait: true},
		then{stdout: []string{
			"service: http://analysis.invalid (online)",
			"context: ctx-1 (Retail banking)",
		}},
	))
	t.Run("When the service does not respond, Then it is unavailable", theory(
		when{ping: errors.New("connection refused")},
		then{
			err:    pipeline.ErrServiceUnavailable,
			stdout: []string{"service: http://analysis.invalid (checking)", "connection refused"},
		},
	))
	t.Run("When it waits but the service stays down, Then it gets offline", theory(
		when{wait: true, ping: errors.New("connection refused")},
		then{
			err:    pipeline.ErrServiceUnavailable,
			stdout: []string{"service: http://analysis.invalid (offline)"},
		},
	))
}
