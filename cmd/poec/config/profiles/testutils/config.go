package testutils

import (
	"os"
	"testing"

	prof "github.com/poec-forensics/console/cmd/poec/config/profiles"
	"gopkg.in/yaml.v3"
)

// create profile file for test.
//
// the created file is removed after testcase automaticaly.
//
// returns:
//   - string: filepath to profile file. if creating is failed, it will be `""`
//   - error: error caused during creating profile file.
func TempProfile(t *testing.T, name string, profile *prof.Profile) (string, error) {
	t.Helper()

	tmprof, err := os.CreateTemp(t.TempDir(), "profile")
	if err != nil {
		return "", err
	}
	defer tmprof.Close()

	if err := yaml.NewEncoder(tmprof).Encode(prof.ProfileStore{name: profile}); err != nil {
		return "", err
	}

	return tmprof.Name(), nil
}
