package registration

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/wolfeidau/sopdesk/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScheme is returned when a scheme fails validation.
var ErrInvalidScheme = errors.New("invalid registration scheme")

// KindSpec describes how registrations for one kind are formatted.
type KindSpec struct {
	Code          string `yaml:"code"`
	SequenceWidth int    `yaml:"sequence_width"`
}

// Scheme holds the formatting rules for every kind. The tenant width is
// shared since every non-admin registration copies its owner's tenant segment.
type Scheme struct {
	TenantWidth int                      `yaml:"tenant_width"`
	Kinds       map[models.Kind]KindSpec `yaml:"kinds"`
}

// DefaultScheme returns 001.0001.000 style admins with three digit sequences.
func DefaultScheme() Scheme {
	return Scheme{
		TenantWidth: 4,
		Kinds: map[models.Kind]KindSpec{
			models.KindAdmin:      {Code: "001", SequenceWidth: 3},
			models.KindUser:       {Code: "001", SequenceWidth: 3},
			models.KindCompany:    {Code: "002", SequenceWidth: 3},
			models.KindDepartment: {Code: "003", SequenceWidth: 3},
		},
	}
}

// LoadScheme reads a YAML override from path on top of DefaultScheme.
// Kinds named in the file replace the default entry wholesale.
func LoadScheme(path string) (Scheme, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scheme{}, fmt.Errorf("failed to read scheme file: %w", err)
	}

	scheme := DefaultScheme()

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&scheme); err != nil {
		return Scheme{}, fmt.Errorf("%w: %s: %w", ErrInvalidScheme, path, err)
	}

	if err := scheme.Validate(); err != nil {
		return Scheme{}, err
	}

	return scheme, nil
}

// Validate checks widths, codes and that kinds in different collections
// never share a code.
func (s Scheme) Validate() error {
	if s.TenantWidth < 1 || s.TenantWidth > 9 {
		return fmt.Errorf("%w: tenant width %d out of range 1-9", ErrInvalidScheme, s.TenantWidth)
	}

	collections := make(map[string]string) // code -> collection
	for _, kind := range models.Kinds {
		spec, ok := s.Kinds[kind]
		if !ok {
			return fmt.Errorf("%w: missing kind %s", ErrInvalidScheme, kind)
		}

		if spec.Code == "" || strings.Trim(spec.Code, "0123456789") != "" {
			return fmt.Errorf("%w: kind %s code %q must be digits", ErrInvalidScheme, kind, spec.Code)
		}
		if spec.SequenceWidth < 1 || spec.SequenceWidth > 9 {
			return fmt.Errorf("%w: kind %s sequence width %d out of range 1-9", ErrInvalidScheme, kind, spec.SequenceWidth)
		}

		if other, taken := collections[spec.Code]; taken && other != kind.Collection() {
			return fmt.Errorf("%w: code %s used by %s and %s", ErrInvalidScheme, spec.Code, other, kind.Collection())
		}
		collections[spec.Code] = kind.Collection()
	}

	for kind := range s.Kinds {
		if !kind.Valid() {
			return fmt.Errorf("%w: unknown kind %s", ErrInvalidScheme, kind)
		}
	}

	return nil
}

func pad(n int64, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}

// capacity is the largest sequence that fits in width digits.
func capacity(width int) int64 {
	c := int64(1)
	for range width {
		c *= 10
	}
	return c - 1
}
