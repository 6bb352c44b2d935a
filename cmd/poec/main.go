//go:generate go run github.com/Songmu/gocredits/cmd/gocredits@v0.3.0 -w
package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"path"

	subanalyze "github.com/poec-forensics/console/cmd/poec/subcommands/analyze"
	subanchor "github.com/poec-forensics/console/cmd/poec/subcommands/anchor"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	subcontext "github.com/poec-forensics/console/cmd/poec/subcommands/context"
	subfocus "github.com/poec-forensics/console/cmd/poec/subcommands/focus"
	subinit "github.com/poec-forensics/console/cmd/poec/subcommands/init"
	subledger "github.com/poec-forensics/console/cmd/poec/subcommands/ledger"
	sublic "github.com/poec-forensics/console/cmd/poec/subcommands/license"
	"github.com/poec-forensics/console/cmd/poec/subcommands/logger"
	subserve "github.com/poec-forensics/console/cmd/poec/subcommands/serve"
	subsessions "github.com/poec-forensics/console/cmd/poec/subcommands/sessions"
	substatus "github.com/poec-forensics/console/cmd/poec/subcommands/status"
	subvalidate "github.com/poec-forensics/console/cmd/poec/subcommands/validate"
	subverify "github.com/poec-forensics/console/cmd/poec/subcommands/verify"
	subver "github.com/poec-forensics/console/cmd/poec/subcommands/version"
	subwatch "github.com/poec-forensics/console/cmd/poec/subcommands/watch"
	"github.com/poec-forensics/console/pkg/utils/try"
	"github.com/youta-t/flarc"
)

//go:embed CREDITS
var CREDITS string

func main() {
	name := path.Base(os.Args[0])
	logger := logger.Default()
	logger.SetPrefix(fmt.Sprintf("[%s]", name))

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	cf := try.To(common.Flags(".")).OrFatal(logger)
	init := try.To(subinit.New()).OrFatal(logger)
	validate := try.To(subvalidate.New()).OrFatal(logger)
	status := try.To(substatus.New()).OrFatal(logger)
	ctxgroup := try.To(subcontext.New()).OrFatal(logger)
	analyze := try.To(subanalyze.New()).OrFatal(logger)
	anchor := try.To(subanchor.New()).OrFatal(logger)
	verify := try.To(subverify.New()).OrFatal(logger)
	focus := try.To(subfocus.New()).OrFatal(logger)
	ledger := try.To(subledger.New()).OrFatal(logger)
	sessions := try.To(subsessions.New()).OrFatal(logger)
	watch := try.To(subwatch.New()).OrFatal(logger)
	serve := try.To(subserve.New()).OrFatal(logger)
	license := try.To(sublic.New(CREDITS)).OrFatal(logger)
	version := try.To(subver.New()).OrFatal(logger)

	poec := try.To(
		flarc.NewCommandGroup(
			"PoEC forensic session console",
			cf,
			flarc.WithSubcommand("init", init),
			flarc.WithSubcommand("validate", validate),
			flarc.WithSubcommand("status", status),
			flarc.WithSubcommand("context", ctxgroup),
			flarc.WithSubcommand("analyze", analyze),
			flarc.WithSubcommand("anchor", anchor),
			flarc.WithSubcommand("verify", verify),
			flarc.WithSubcommand("focus", focus),
			flarc.WithSubcommand("ledger", ledger),
			flarc.WithSubcommand("sessions", sessions),
			flarc.WithSubcommand("watch", watch),
			flarc.WithSubcommand("serve", serve),
			flarc.WithSubcommand("license", license),
			flarc.WithSubcommand("version", version),
		),
	).OrFatal(logger)

	os.Exit(flarc.Run(ctx, poec, flarc.WithHelp(true)))
}
