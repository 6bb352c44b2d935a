package env

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/poec-forensics/console/cmd/poec/config/profiles"
)

var ErrInvalidEnv = errors.New("invalid environment variable")

const (
	ApiUrl     = "POEC_API_URL"
	AutoAnchor = "POEC_AUTO_ANCHOR"
	LogLevel   = "POEC_LOG_LEVEL"
	Journal    = "POEC_JOURNAL"
)

// PoecEnv is settings from environment variables and the .env file.
//
// Empty (or nil) fields are not set.
type PoecEnv struct {
	// overrides apiRoot of the profile
	ApiUrl string

	// overrides autoAnchor of the profile
	AutoAnchor *bool

	// debug, info, warn or error
	LogLevel string

	// path to the session journal
	Journal string
}

func New() *PoecEnv {
	return new(PoecEnv)
}

type loadOption struct {
	lookup func(string) (string, bool)
}

type LoadOption func(*loadOption) *loadOption

// WithLookup replaces os.LookupEnv.
func WithLookup(lookup func(string) (string, bool)) LoadOption {
	return func(lo *loadOption) *loadOption {
		lo.lookup = lookup
		return lo
	}
}

// LoadPoecEnv reads the dotenv file at filepath, then environment variables.
//
// Environment variables take precedence over the file.
// A missing file is not an error; it is the same as an empty file.
func LoadPoecEnv(filepath string, options ...LoadOption) (*PoecEnv, error) {
	lo := &loadOption{lookup: os.LookupEnv}
	for _, o := range options {
		lo = o(lo)
	}

	vars := map[string]string{}
	if _, err := os.Stat(filepath); err == nil {
		read, err := godotenv.Read(filepath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath, err)
		}
		vars = read
	}
	for _, k := range []string{ApiUrl, AutoAnchor, LogLevel, Journal} {
		if v, ok := lo.lookup(k); ok {
			vars[k] = v
		}
	}

	env := New()
	env.ApiUrl = vars[ApiUrl]
	env.LogLevel = vars[LogLevel]
	env.Journal = vars[Journal]
	if v, ok := vars[AutoAnchor]; ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%s", ErrInvalidEnv, AutoAnchor, v)
		}
		env.AutoAnchor = &b
	}
	return env, nil
}

// Apply returns a copy of prof overridden by the environment.
func (pe *PoecEnv) Apply(prof profiles.Profile) profiles.Profile {
	if pe.ApiUrl != "" {
		prof.ApiRoot = pe.ApiUrl
	}
	if pe.AutoAnchor != nil {
		prof.AutoAnchor = *pe.AutoAnchor
	}
	return prof
}
