package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// PrefixSize is the size of the head of a file read to find its header row.
const PrefixSize = 5120

var ErrSchemaInvalid = errors.New("ledger schema is invalid")

// Canonical columns every ledger must have, in the order of reporting.
var Canonical = []string{"source_entity", "target_entity", "amount", "timestamp"}

// same as ingestion of the service
var synonyms = map[string]string{
	"entity_id":       "source_entity",
	"sender":          "source_entity",
	"source":          "source_entity",
	"counterparty_id": "target_entity",
	"receiver":        "target_entity",
	"target":          "target_entity",
	"value":           "amount",
	"date":            "timestamp",
	"time":            "timestamp",
	"datetime":        "timestamp",
	"txn_date":        "timestamp",
}

// Verdict of validation.
type Verdict struct {
	Valid bool

	// Missing canonical columns, in the order of Canonical.
	Missing []string

	// Header columns found, normalized.
	Found []string

	// Message for users. Empty when Valid.
	Message string
}

// Err returns nil when the verdict is valid, otherwise an error wrapping ErrSchemaInvalid.
func (v Verdict) Err() error {
	if v.Valid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrSchemaInvalid, v.Message)
}

func invalid(message string) Verdict {
	return Verdict{Valid: false, Message: message}
}

// Normalize a column name: trim, case-fold, strip quotes, and map synonyms.
func Normalize(column string) string {
	c := strings.ToLower(strings.TrimSpace(column))
	c = strings.TrimSpace(strings.NewReplacer(`"`, "", `'`, "").Replace(c))
	if canon, ok := synonyms[c]; ok {
		return canon
	}
	return c
}

// Validate reads the head of src and checks its header row.
//
// src is opened and closed here. It fails closed: unreadable or empty sources are invalid.
func Validate(src Source) Verdict {
	r, err := src.Open()
	if err != nil {
		return invalid("Failed to read file")
	}
	defer r.Close()

	prefix, err := io.ReadAll(io.LimitReader(r, PrefixSize))
	if err != nil {
		return invalid("Failed to read file")
	}
	return ValidateHeader(prefix)
}

// ValidateHeader checks the first line of prefix.
func ValidateHeader(prefix []byte) Verdict {
	prefix = bytes.TrimPrefix(prefix, []byte("\ufeff"))
	if len(bytes.TrimSpace(prefix)) == 0 {
		return invalid("Empty file")
	}

	line, _, _ := bytes.Cut(prefix, []byte("\n"))

	found := []string{}
	for _, col := range strings.Split(string(line), ",") {
		found = append(found, Normalize(col))
	}

	missing := []string{}
	for _, c := range Canonical {
		if !slices.Contains(found, c) {
			missing = append(missing, c)
		}
	}

	if 0 < len(missing) {
		return Verdict{
			Valid:   false,
			Missing: missing,
			Found:   found,
			Message: fmt.Sprintf(
				"Missing required columns: %s.\nfound: %s",
				strings.Join(missing, ", "), strings.Join(found, ", "),
			),
		}
	}

	return Verdict{Valid: true, Found: found}
}
