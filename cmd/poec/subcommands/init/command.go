package init

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	prof "github.com/poec-forensics/console/cmd/poec/config/profiles"
	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	"github.com/youta-t/flarc"
	"gopkg.in/yaml.v3"
)

type Flags struct {
	CA         string `flag:"ca" metavar:"PEM_FILE" help:"CA certificate to trust for the analysis service"`
	AutoAnchor bool   `flag:"auto-anchor" help:"anchor every completed analysis automatically"`
}

const ARG_PROFILE = "PROFILE"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Register the analysis service to be used in this directory.",
		Flags{},
		flarc.Args{
			{
				Name: ARG_PROFILE, Required: true,
				Help: "URL of the analysis service, or a profile file (YAML) you received.",
			},
		},
		common.NewTaskWithCommonFlag(Task("")),
		flarc.WithDescription(`
Register a new profile into your profile store,
and use it in this directory and its descendants.

A profile is "apiRoot" (URL of the analysis service) with optional "cert.ca",
"autoAnchor", "ledgerLimit" and "probe" settings.

The name of the profile is given by "--profile" ( default: "default" ).
`),
	)
}

// Task registers the profile. ".poecprofile" is written in workdir ("" means the current directory).
func Task(workdir string) common.PoecTaskWithCommonFlag[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		cf common.CommonFlags,
		cl flarc.Commandline[Flags],
		_ []any,
	) error {
		flags := cl.Flags()
		newProf, err := readProfile(cl.Args()[ARG_PROFILE][0])
		if err != nil {
			return err
		}
		if flags.CA != "" {
			pem, err := os.ReadFile(flags.CA)
			if err != nil {
				return fmt.Errorf("failed to read CA certificate (%s): %w", flags.CA, err)
			}
			newProf.Cert.CA = base64.StdEncoding.EncodeToString(pem)
		}
		if flags.AutoAnchor {
			newProf.AutoAnchor = true
		}
		if err := newProf.Verify(); err != nil {
			return err
		}

		store, err := prof.LoadProfileStore(cf.ProfileStore)
		if errors.Is(err, prof.ErrProfileStoreNotFound) {
			store = prof.ProfileStore{}
		} else if err != nil {
			return fmt.Errorf("failed to load profile store (%s): %w", cf.ProfileStore, err)
		}

		store[cf.Profile] = newProf
		if err := store.Save(cf.ProfileStore); err != nil {
			return fmt.Errorf("failed to save profile store (%s): %w", cf.ProfileStore, err)
		}
		logger.Info("profile is saved", "profile", cf.Profile, "store", cf.ProfileStore)

		dotfile := filepath.Join(workdir, common.ProfileFile)
		if err := os.WriteFile(dotfile, []byte(cf.Profile+"\n"), os.FileMode(0600)); err != nil {
			return fmt.Errorf("failed to write %s: %w", dotfile, err)
		}
		return nil
	}
}

func readProfile(arg string) (*prof.Profile, error) {
	if u, err := url.Parse(arg); err == nil && u.IsAbs() && (u.Scheme == "http" || u.Scheme == "https") {
		return &prof.Profile{ApiRoot: arg}, nil
	}

	content, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file (%s): %w", arg, err)
	}
	p := new(prof.Profile)
	if err := yaml.Unmarshal(content, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile file (%s): %w", arg, err)
	}
	return p, nil
}
