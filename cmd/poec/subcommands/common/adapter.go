package common

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/poec-forensics/console/cmd/poec/config/profiles"
	"github.com/poec-forensics/console/cmd/poec/env"
	cuierrors "github.com/poec-forensics/console/cmd/poec/errors"
	"github.com/poec-forensics/console/cmd/poec/rest"
	"github.com/poec-forensics/console/cmd/poec/subcommands/logger"
	"github.com/youta-t/flarc"
)

type PoecTaskWithCommonFlag[T any] func(
	ctx context.Context,
	logger *log.Logger,
	commonFlag CommonFlags,
	cl flarc.Commandline[T],
	params []any,
) error

func NewTaskWithCommonFlag[T any](task PoecTaskWithCommonFlag[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], pos []any) error {
		var commonFlag CommonFlags
		found := false
		newpos := make([]any, 0, len(pos))
		for _, p := range pos {
			switch v := p.(type) {
			case CommonFlags:
				found = true
				commonFlag = v
			default:
				newpos = append(newpos, p)
			}
		}
		if !found {
			return errors.New("programming error: common flags not found")
		}

		return cuierrors.Explain(task(
			ctx,
			logger.For(cl.Stderr(), cl.Fullname()),
			commonFlag,
			cl,
			newpos,
		))
	}
}

// Console is what a command works with.
type Console struct {
	Env env.PoecEnv

	// Profile is the profile in use, overridden by Env.
	Profile profiles.Profile

	Client rest.PoecClient

	// JournalPath is the path to the session journal.
	JournalPath string
}

type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	console Console,
	cl flarc.Commandline[T],
	params []any,
) error

func NewTask[T any](task Task[T]) flarc.Task[T] {
	return NewTaskWithCommonFlag(func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag CommonFlags,
		cl flarc.Commandline[T],
		params []any,
	) error {
		console, err := Load(commonFlag)
		if err != nil {
			return err
		}
		if console.Env.LogLevel != "" {
			level, err := log.ParseLevel(console.Env.LogLevel)
			if err != nil {
				return fmt.Errorf("%w: %s=%s", env.ErrInvalidEnv, env.LogLevel, console.Env.LogLevel)
			}
			logger.SetLevel(level)
		}
		return task(ctx, logger, console, cl, params)
	})
}

// Load builds Console from profile store and .env file.
func Load(commonFlag CommonFlags) (Console, error) {
	store, err := profiles.LoadProfileStore(commonFlag.ProfileStore)
	if err != nil {
		if errors.Is(err, profiles.ErrProfileStoreNotFound) {
			return Console{}, fmt.Errorf(
				"%w: poec profile store (%s) is not found. Please try `poec init` first",
				err, commonFlag.ProfileStore,
			)
		}
		return Console{}, fmt.Errorf(
			"%w: failed to load poec profile store (%s)",
			err, commonFlag.ProfileStore,
		)
	}
	prof, ok := store[commonFlag.Profile]
	if !ok || prof == nil {
		return Console{}, fmt.Errorf(
			"profile '%s' not found in the profile store (%s)",
			commonFlag.Profile, commonFlag.ProfileStore,
		)
	}

	e, err := env.LoadPoecEnv(commonFlag.Env)
	if err != nil {
		return Console{}, fmt.Errorf("%w: failed to load %s", err, commonFlag.Env)
	}

	effective := e.Apply(*prof)
	client, err := rest.NewClient(&effective)
	if err != nil {
		return Console{}, fmt.Errorf(
			"%w: failed to create poec client. Your profile (%s in %s) can be broken.\n\nRemove it and try `poec init` again",
			err, commonFlag.Profile, commonFlag.ProfileStore,
		)
	}

	journal := e.Journal
	if journal == "" {
		journal = filepath.Join(filepath.Dir(commonFlag.ProfileStore), "journal.db")
	}

	return Console{
		Env:         *e,
		Profile:     effective,
		Client:      client,
		JournalPath: journal,
	}, nil
}
