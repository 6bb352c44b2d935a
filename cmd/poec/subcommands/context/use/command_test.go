package use_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/poec-forensics/console/cmd/poec/rest/mock"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	"github.com/poec-forensics/console/cmd/poec/subcommands/context/use"
	"github.com/poec-forensics/console/cmd/poec/subcommands/internal/commandline"
	"github.com/poec-forensics/console/cmd/poec/subcommands/logger"
	apicontexts "github.com/poec-forensics/console/pkg/api/types/contexts"
	"github.com/poec-forensics/console/pkg/cmp"
	"github.com/youta-t/flarc"
)

func TestSwitchCommand(t *testing.T) {
	type then struct {
		err      error
		switched []string
		stdout   string
	}

	theory := func(id string, then then) func(*testing.T) {
		return func(t *testing.T) {
			client := mock.New(t)
			client.Impl.GetContexts = func(context.Context) (apicontexts.Profiles, error) {
				return apicontexts.Profiles{
					Active:    apicontexts.Active{ContextId: "retail"},
					Available: map[string]string{"retail": "Retail", "crypto": "Crypto"},
				}, nil
			}
			client.Impl.SwitchContext = func(_ context.Context, id string) (apicontexts.Switched, error) {
				return apicontexts.Switched{Message: "Switched to " + id}, nil
			}

			stdout := new(strings.Builder)
			err := use.Task(
				context.Background(), logger.Null(), common.Console{Client: client},
				commandline.MockCommandline[struct{}]{
					Fullname_: "poec context switch",
					Stdout_:   stdout,
					Stderr_:   new(strings.Builder),
					Args_:     map[string][]string{use.ARG_CONTEXT_ID: {id}},
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

			if !cmp.SliceEq(client.Calls.SwitchContext, then.switched) {
				t.Errorf("switched: (actual, expected) = (%v, %v)", client.Calls.SwitchContext, then.switched)
			}
			if got := stdout.String(); got != then.stdout {
				t.Errorf("stdout: (actual, expected) = (%q, %q)", got, then.stdout)
			}
		}
	}

	t.Run("When the context is known, Then it is switched", theory(
		"crypto",
		then{switched: []string{"crypto"}, stdout: "Switched to crypto\n"},
	))
	t.Run("When the context is unknown, Then it is usage error", theory(
		"insurance",
		then{err: flarc.ErrUsage},
	))
}
