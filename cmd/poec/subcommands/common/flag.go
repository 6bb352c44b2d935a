package common

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// ProfileFile names the profile to be used in the directory and its descendants.
	ProfileFile = ".poecprofile"

	// EnvFile is the dotenv file of the project.
	EnvFile = ".env"
)

type CommonFlags struct {
	Profile      string `flag:"profile" help:"poec profile name to use"`
	ProfileStore string `flag:"profile-store" help:"path to poec profile store file"`
	Env          string `flag:"env" help:"path to .env file"`
}

type commonFlagDetection struct {
	home string
}

type CommonFlagDetectionOption func(*commonFlagDetection) *commonFlagDetection

func WithHome(home string) CommonFlagDetectionOption {
	return func(opt *commonFlagDetection) *commonFlagDetection {
		opt.home = home
		return opt
	}
}

// Flags detects default values of CommonFlags.
//
// The profile name is the first line of .poecprofile and .env is the nearest one,
// both searched from the directory `from` up to the root.
// Without .poecprofile, the profile name is "default".
func Flags(from string, opt ...CommonFlagDetectionOption) (CommonFlags, error) {
	detparam := commonFlagDetection{home: ""}
	for _, o := range opt {
		detparam = *o(&detparam)
	}

	home := detparam.home
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}

	if _from, err := filepath.Abs(from); err == nil {
		from = _from
	}

	profile := "default"
	env := filepath.Join(from, EnvFile)

	profileFound := false
	envFound := false
	for searchpath := from; ; {
		if !profileFound {
			candidate := filepath.Join(searchpath, ProfileFile)
			if s, err := os.Stat(candidate); err == nil && s.Mode().IsRegular() {
				content, err := os.ReadFile(candidate)
				if err != nil {
					return CommonFlags{}, err
				}
				profileFound = true
				if p, _, _ := strings.Cut(string(content), "\n"); strings.TrimSpace(p) != "" {
					profile = strings.TrimSpace(p)
				}
			}
		}
		if !envFound {
			candidate := filepath.Join(searchpath, EnvFile)
			if s, err := os.Stat(candidate); err == nil && s.Mode().IsRegular() {
				envFound = true
				env = candidate
			}
		}

		if profileFound && envFound {
			break
		}

		next := filepath.Dir(searchpath)
		if next == searchpath {
			break
		}
		searchpath = next
	}

	return CommonFlags{
		Profile:      profile,
		ProfileStore: filepath.Join(home, ".poec", "profile"),
		Env:          env,
	}, nil
}
