package validate

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	cerr "github.com/poec-forensics/console/cmd/poec/errors"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	"github.com/poec-forensics/console/pkg/schema"
	"github.com/youta-t/flarc"
)

const ARG_FILE = "FILE"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Check ledger files have the required columns.",
		struct{}{},
		flarc.Args{
			{
				Name: ARG_FILE, Required: true, Repeatable: true,
				Help: "ledger files (CSV) to be checked",
			},
		},
		common.NewTaskWithCommonFlag(Task),
		flarc.WithDescription(`
Check ledger files have the required columns, without uploading them.

Required columns are source_entity, target_entity, amount and timestamp.
Synonyms (e.g. "sender", "receiver", "value", "date") are accepted.
`),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	_ common.CommonFlags,
	cl flarc.Commandline[struct{}],
	_ []any,
) error {
	failed := 0
	for _, path := range cl.Args()[ARG_FILE] {
		verdict := schema.Validate(schema.File(path))
		if verdict.Valid {
			fmt.Fprintf(cl.Stdout(), "%s: ok\n", path)
			continue
		}
		failed += 1
		fmt.Fprintf(cl.Stdout(), "%s: %s\n", path, verdict.Message)
		logger.Debug("invalid ledger", "file", path, "missing", verdict.Missing)
	}
	if failed == 0 {
		return nil
	}
	return cerr.NewCuiError(
		fmt.Sprintf("%d of %d files are invalid", failed, len(cl.Args()[ARG_FILE])),
		cerr.WithCause(schema.ErrSchemaInvalid),
	)
}
