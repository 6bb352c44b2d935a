package list

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"List economic contexts.",
		struct{}{},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
List economic-context profiles the analysis service knows.
The active one is marked with "*".
`),
	)
}

func Task(
	ctx context.Context,
	_ *log.Logger,
	console common.Console,
	cl flarc.Commandline[struct{}],
	_ []any,
) error {
	profiles, err := console.Client.GetContexts(ctx)
	if err != nil {
		return err
	}

	w := cl.Stdout()
	for _, id := range profiles.Ids() {
		mark := " "
		if id == profiles.Active.ContextId {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %s\t%s\n", mark, id, profiles.Available[id])
	}
	return nil
}
