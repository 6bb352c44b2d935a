package verify_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/poec-forensics/console/cmd/poec/rest/mock"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	"github.com/poec-forensics/console/cmd/poec/subcommands/internal/commandline"
	"github.com/poec-forensics/console/cmd/poec/subcommands/logger"
	"github.com/poec-forensics/console/cmd/poec/subcommands/verify"
	apiproof "github.com/poec-forensics/console/pkg/api/types/proof"
	"github.com/poec-forensics/console/pkg/cmp"
	"github.com/poec-forensics/console/pkg/proof"
)

func TestVerifyCommand(t *testing.T) {
	type when struct {
		hash    string
		verify  func(context.Context, string) (apiproof.Verification, error)
		archive func(context.Context, string) (apiproof.Archive, error)
	}
	type then struct {
		err       error
		stdout    []string
		verified  []string
		archived  []string
		notStdout []string
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			client := mock.Ready(t)
			if when.verify != nil {
				client.Impl.Verify = when.verify
			}
			if when.archive != nil {
				client.Impl.Archive = when.archive
			}

			stdout := new(strings.Builder)
			err := verify.Task(
				context.Background(), logger.Null(), common.Console{Client: client},
				commandline.MockCommandline[struct{}]{
					Fullname_: "poec verify",
					Stdout_:   stdout,
					Stderr_:   new(strings.Builder),
					Args_:     map[string][]string{verify.ARG_HASH: {when.hash}},
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

			if !cmp.SliceEq(client.Calls.Verify, then.verified) {
				t.Errorf("verified: (actual, expected) = (%v, %v)", client.Calls.Verify, then.verified)
			}
			if !cmp.SliceEq(client.Calls.Archive, then.archived) {
				t.Errorf("archived: (actual, expected) = (%v, %v)", client.Calls.Archive, then.archived)
			}
			for _, line := range then.stdout {
				if !strings.Contains(stdout.String(), line) {
					t.Errorf("stdout does not contain %q:\n%s", line, stdout.String())
				}
			}
			for _, line := range then.notStdout {
				if strings.Contains(stdout.String(), line) {
					t.Errorf("stdout contains %q:\n%s", line, stdout.String())
				}
			}
		}
	}

	t.Run("When the hash is anchored, Then the record and the archive are shown", theory(
		when{hash: "h3"},
		then{
			verified: []string{"h3"},
			archived: []string{"QmCid"},
			stdout: []string{
				"verified:  true",
				"on chain:  0xh3",
				"timestamp: 2024-05-01T10:00:00Z",
				"transactions: 2 (volume 105.00)",
				"anomalies:    2",
			},
		},
	))
	t.Run("When the hash has no archive, Then only the record is shown", theory(
		when{
			hash: "h3",
			verify: func(_ context.Context, h string) (apiproof.Verification, error) {
				return apiproof.Verification{Verified: true, OnChainHash: "0x" + h}, nil
			},
		},
		then{
			verified:  []string{"h3"},
			stdout:    []string{"verified:  true", "timestamp: -"},
			notStdout: []string{"archive"},
		},
	))
	t.Run("When the archive cannot be fetched, Then the lookup still succeeds", theory(
		when{
			hash: "h3",
			archive: func(context.Context, string) (apiproof.Archive, error) {
				return apiproof.Archive{}, errors.New("gateway timeout")
			},
		},
		then{
			verified: []string{"h3"},
			archived: []string{"QmCid"},
			stdout:   []string{"verified:  true", "archive is unavailable: gateway timeout"},
		},
	))
	t.Run("When the hash is not on the ledger, Then it is a miss", theory(
		when{
			hash: "unknown",
			verify: func(context.Context, string) (apiproof.Verification, error) {
				return apiproof.Verification{}, proof.ErrVerifyMiss
			},
		},
		then{err: proof.ErrVerifyMiss, verified: []string{"unknown"}},
	))
}
