package common_test

import (
	"path/filepath"
	"testing"

	"github.com/poec-forensics/console/cmd/poec/subcommands/common"
	"github.com/poec-forensics/console/pkg/utils/try"
)

func TestDefaultCommonFlags(t *testing.T) {
	expectedStore := try.To(filepath.Abs("./testdata/home/.poec/profile")).OrFatal(t)

	t.Run("it returns default value from given directory", func(t *testing.T) {
		cf := try.To(common.Flags(
			"./testdata/current",
			common.WithHome(try.To(filepath.Abs("./testdata/home")).OrFatal(t)),
		)).OrFatal(t)

		if cf.ProfileStore != expectedStore {
			t.Errorf("wrong profile store: %s", cf.ProfileStore)
		}
		if cf.Profile != "test" {
			t.Errorf("wrong profile: %s", cf.Profile)
		}
		if cf.Env != try.To(filepath.Abs("./testdata/current/.env")).OrFatal(t) {
			t.Errorf("wrong env: %s", cf.Env)
		}
	})

	t.Run("it returns default value from ancestors of given directory", func(t *testing.T) {
		cf := try.To(common.Flags(
			"./testdata/current/children/folder",
			common.WithHome(try.To(filepath.Abs("./testdata/home")).OrFatal(t)),
		)).OrFatal(t)

		if cf.ProfileStore != expectedStore {
			t.Errorf("wrong profile store: %s", cf.ProfileStore)
		}
		if cf.Profile != "test" {
			t.Errorf("wrong profile: %s", cf.Profile)
		}
		if cf.Env != try.To(filepath.Abs("./testdata/current/.env")).OrFatal(t) {
			t.Errorf("wrong env: %s", cf.Env)
		}
	})

	t.Run("without .poecprofile, it uses the default profile", func(t *testing.T) {
		cf := try.To(common.Flags(
			"./testdata/bare",
			common.WithHome(try.To(filepath.Abs("./testdata/home")).OrFatal(t)),
		)).OrFatal(t)

		if cf.Profile != "default" {
			t.Errorf("wrong profile: %s", cf.Profile)
		}
	})
}
