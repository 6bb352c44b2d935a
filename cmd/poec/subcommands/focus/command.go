package focus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	"github.com/poec-forensics/console/pkg/api/types/analysis"
	"github.com/poec-forensics/console/pkg/focus"
	"github.com/poec-forensics/console/pkg/journal"
	"github.com/poec-forensics/console/pkg/pipeline"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Session string `flag:"session" alias:"s" metavar:"SESSION_ID" help:"session to be drawn. The latest complete session by default."`
	Anomaly string `flag:"anomaly" alias:"a" metavar:"ANOMALY_ID" help:"focus on entities of the anomaly"`
	Search  string `flag:"search" metavar:"NODE_ID" help:"focus on the node and its neighbors"`
	Select  string `flag:"select" metavar:"ELEMENT_ID" help:"select a node or an edge"`
	Out     string `flag:"out" alias:"o" metavar:"FILE" help:"write the graph in Graphviz DOT to FILE. \"-\" is stdout."`

	MinConfidence string `flag:"min-confidence" metavar:"all|low|medium|high" help:"--anomaly looks up anomalies with this confidence or stronger"`
}

var ErrConflictingFocus = errors.New("only one of --anomaly, --search and --select can be given")

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Draw the transaction graph of a session, focusing on findings.",
		Flags{Out: "-", MinConfidence: "all"},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Draw the transaction graph of an analysis session in Graphviz DOT.

With --anomaly, entities involved in the anomaly are highlighted with connections
among them, and the others are dimmed. Entities not in the graph are reported.
Anomalies weaker than --min-confidence are not looked up.
With --search, the node and its neighborhood are highlighted.
With --select, the node or the edge is selected.

Without them, the whole graph is drawn. Anomalous edges are dashed.

Example:

	poec focus --anomaly an-1 | dot -Tsvg > focus.svg
`),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	console common.Console,
	cl flarc.Commandline[Flags],
	_ []any,
) error {
	flags := cl.Flags()
	given := 0
	for _, f := range []string{flags.Anomaly, flags.Search, flags.Select} {
		if f != "" {
			given += 1
		}
	}
	if 1 < given {
		return errors.Join(flarc.ErrUsage, ErrConflictingFocus)
	}
	minConfidence, ok := analysis.ParseConfidence(flags.MinConfidence)
	if !ok {
		return errors.Join(
			flarc.ErrUsage,
			fmt.Errorf("--min-confidence: unknown tier %q", flags.MinConfidence),
		)
	}

	j, err := common.OpenJournal(console.JournalPath)
	if err != nil {
		return err
	}
	defer j.Close()

	var entry journal.Entry
	if flags.Session != "" {
		entry, err = j.Get(ctx, flags.Session)
	} else {
		entry, err = j.LastComplete(ctx)
	}
	if errors.Is(err, journal.ErrNotFound) {
		return fmt.Errorf("%w: %w", pipeline.ErrNotComplete, err)
	} else if err != nil {
		return err
	}
	if entry.Result == nil {
		return fmt.Errorf("%w: session %s has no result", pipeline.ErrNotComplete, entry.SessionId)
	}

	viewport := &focus.Recorder{}
	engine := focus.NewEngine(viewport, focus.WithLogger(logger))
	engine.Load(focus.FromElements(entry.Result.GraphData.Elements))

	report := cl.Stderr()
	var ann focus.Annotations
	switch {
	case flags.Anomaly != "":
		found := false
		for _, a := range analysis.FilterByConfidence(entry.Result.Anomalies, minConfidence) {
			if a.AnomalyId != flags.Anomaly {
				continue
			}
			found = true
			ann = engine.Focus(a)
			fmt.Fprintf(report, "anomaly %s (%s): %s\n", a.AnomalyId, a.AnomalyType, strings.Join(a.EntitiesInvolved, ", "))
			break
		}
		if !found {
			return fmt.Errorf(
				"%w: anomaly %q with confidence %s or stronger in session %s",
				focus.ErrNotFound, flags.Anomaly, flags.MinConfidence, entry.SessionId,
			)
		}
		if 0 < len(ann.Unresolved) {
			fmt.Fprintf(report, "not in the graph: %s\n", strings.Join(ann.Unresolved, ", "))
		}
	case flags.Search != "":
		if ann, err = engine.Search(flags.Search); err != nil {
			return err
		}
	case flags.Select != "":
		if ann, err = engine.Select(flags.Select); err != nil {
			return err
		}
	default:
		engine.Reset()
		_, ann = engine.State()
	}

	if frame, ok := viewport.Last(); ok && !frame.Whole {
		fmt.Fprintf(report, "framed: %s\n", strings.Join(frame.Elements, ", "))
	}

	if flags.Out == "" || flags.Out == "-" {
		return engine.Graph().GenerateDot(cl.Stdout(), ann)
	}
	return writeDot(flags.Out, engine.Graph(), ann)
}

func writeDot(path string, g *focus.Graph, ann focus.Annotations) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return g.GenerateDot(f, ann)
}
