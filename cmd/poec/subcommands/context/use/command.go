package use

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	"github.com/youta-t/flarc"
)

const ARG_CONTEXT_ID = "CONTEXT_ID"

var ErrUnknownContext = errors.New("unknown context")

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Switch the active economic context.",
		struct{}{},
		flarc.Args{
			{
				Name: ARG_CONTEXT_ID, Required: true,
				Help: "id of the context to be active. See `poec context list`.",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Switch the economic-context profile of the analysis service.

Analyses after switching are calibrated for the context.
Sessions analysed before are not affected.
`),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	console common.Console,
	cl flarc.Commandline[struct{}],
	_ []any,
) error {
	id := cl.Args()[ARG_CONTEXT_ID][0]

	profiles, err := console.Client.GetContexts(ctx)
	if err != nil {
		return err
	}
	if !profiles.Has(id) {
		return errors.Join(
			flarc.ErrUsage,
			fmt.Errorf("%w: %s (available: %v)", ErrUnknownContext, id, profiles.Ids()),
		)
	}

	sw, err := console.Client.SwitchContext(ctx, id)
	if err != nil {
		return err
	}
	logger.Info("context is switched", "context", id)
	if sw.Message != "" {
		fmt.Fprintln(cl.Stdout(), sw.Message)
	}
	return nil
}
