package context

import (
	ctx_list "github.com/poec-forensics/console/cmd/poec/subcommands/context/list"
	ctx_use "github.com/poec-forensics/console/cmd/poec/subcommands/context/use"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	list, err := ctx_list.New()
	if err != nil {
		return nil, err
	}
	sw, err := ctx_use.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Manipulate economic contexts of the analysis service.",
		struct{}{},
		flarc.WithSubcommand("list", list),
		flarc.WithSubcommand("switch", sw),
	)
}
