package profiles

import (
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hectane/go-acl"
	"github.com/poec-forensics/console/cmd/poec/config/open"
	"github.com/poec-forensics/console/pkg/utils/retry"
	yaml "gopkg.in/yaml.v3"
)

var ErrProfileStoreNotFound = errors.New("config file is not found")
var ErrCannotCreateConfig = errors.New("cannot create config file")
var ErrCannotUpdateConfig = errors.New("cannot update config file")
var ErrProfileInvalid = errors.New("poec profile is invalid")

// ProfileStore is a map from profile name to Profile.
type ProfileStore map[string]*Profile

type Cert struct {
	// base64 encoded CA certificate
	CA string `yaml:"ca,omitempty" validate:"omitempty,pem"`
}

// Probe configures liveness probing of the analysis service.
//
// Zero values mean defaults of the liveness monitor.
type Probe struct {
	// hard timeout of each probe
	Timeout time.Duration `yaml:"timeout,omitempty" validate:"gte=0"`

	// interval before the first retry
	Interval time.Duration `yaml:"interval,omitempty" validate:"gte=0"`

	// failed probes before giving up
	Attempts int `yaml:"attempts,omitempty" validate:"gte=0"`

	// "static", "linear" or "exponential"
	Backoff string `yaml:"backoff,omitempty" validate:"omitempty,oneof=static linear exponential"`
}

// Policy builds the backoff policy. When interval is not set, fallback is used.
func (p Probe) Policy(fallback time.Duration) (retry.Policy, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = fallback
	}
	return retry.Parse(p.Backoff, interval)
}

// Profile is a profile for an analysis service.
type Profile struct {
	// endpoint of the analysis service
	ApiRoot string `yaml:"apiRoot" validate:"required,url"`

	// cert is a certificate for the analysis service.
	Cert Cert `yaml:"cert,omitempty"`

	// anchor every completed analysis automatically
	AutoAnchor bool `yaml:"autoAnchor,omitempty"`

	// max ledger rows fetched after analysis. 0 means default.
	LedgerLimit int `yaml:"ledgerLimit,omitempty" validate:"gte=0"`

	Probe Probe `yaml:"probe,omitempty"`
}

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("pem", func(fl validator.FieldLevel) bool {
		return verifyPEM(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

func verifyPEM(b64cert string) bool {
	bin, err := base64.StdEncoding.DecodeString(b64cert)
	if err != nil {
		return false
	}
	blk, _ := pem.Decode(bin)
	return blk != nil
}

// Verify Profile
//
// # Return
//
// nil if it is valid. Otherwise, ErrProfileInvalid error.
func (p *Profile) Verify() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrProfileInvalid, err)
	}
	problems := make([]string, 0, len(verrs))
	for _, ve := range verrs {
		problems = append(problems, describe(ve))
	}
	return fmt.Errorf("%w: %s", ErrProfileInvalid, strings.Join(problems, "; "))
}

func describe(ve validator.FieldError) string {
	// Namespace is "Profile.probe.backoff". Drop the type name.
	_, field, _ := strings.Cut(ve.Namespace(), ".")
	switch ve.Tag() {
	case "required":
		return field + " is required"
	case "url":
		return fmt.Sprintf("%s is not URL: %v", field, ve.Value())
	case "pem":
		return field + " is not PEM"
	case "oneof":
		return fmt.Sprintf("%s should be one of %s: %v", field, ve.Param(), ve.Value())
	default:
		return fmt.Sprintf("%s is invalid (%s%s): %v", field, ve.Tag(), paramOf(ve), ve.Value())
	}
}

func paramOf(ve validator.FieldError) string {
	if p := ve.Param(); p != "" {
		return "=" + p
	}
	return ""
}

// LoadProfileStore loads profile store from file.
func LoadProfileStore(filepath string) (ProfileStore, error) {
	buf, err := os.ReadFile(filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrProfileStoreNotFound, filepath)
		}
		return nil, err
	}
	return Unmarshall(buf)
}

// Unmarshall profile store from yaml in byte array.
func Unmarshall(buf []byte) (ProfileStore, error) {
	ret := map[string]*Profile{}
	err := yaml.Unmarshal(buf, &ret)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Save profile store to file.
//
// The previous content is kept as "<path>.backup" while writing,
// and it stays there when writing fails.
func (ps *ProfileStore) Save(path string) error {
	saving := false

	if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0700)); err != nil {
		return err
	}

	bkpath := path + ".backup"
	bk, err := open.NewSafeFile(bkpath)
	if err != nil {
		return err
	}
	defer func() {
		if !saving {
			os.Remove(bkpath)
		}
	}()
	defer bk.Close()

	f, err := os.OpenFile(path, os.O_RDWR, os.FileMode(0600))
	if err == nil {
		// In case of the existing file with loose permissions,
		// enforce permission to 0600.
		if err := acl.Chmod(path, os.FileMode(0600)); err != nil {
			f.Close()
			return err
		}
	} else if os.IsPermission(err) {
		return fmt.Errorf(
			"%w, because no permission to write file at %s",
			ErrCannotUpdateConfig, path,
		)
	} else if os.IsNotExist(err) {
		f_, err_ := open.NewSafeFile(path)
		if err_ != nil {
			return fmt.Errorf(
				"%w: cannot create a file at %s",
				ErrCannotCreateConfig, path,
			)
		}
		f = f_
	} else {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(bk, f); err != nil {
		return err
	}

	saving = true
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	buf, err := yaml.Marshal(ps)
	if err != nil {
		return err
	}
	if _, err = f.Write(buf); err != nil {
		return err
	}
	saving = false
	return nil
}
