package registration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/sopdesk/internal/models"
)

func TestDefaultSchemeIsValid(t *testing.T) {
	require.NoError(t, DefaultScheme().Validate())
}

func TestSchemeValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Scheme)
	}{
		{name: "tenant width zero", mutate: func(s *Scheme) { s.TenantWidth = 0 }},
		{name: "tenant width too wide", mutate: func(s *Scheme) { s.TenantWidth = 10 }},
		{name: "missing kind", mutate: func(s *Scheme) { delete(s.Kinds, models.KindDepartment) }},
		{name: "non numeric code", mutate: func(s *Scheme) { s.Kinds[models.KindCompany] = KindSpec{Code: "0x2", SequenceWidth: 3} }},
		{name: "zero sequence width", mutate: func(s *Scheme) { s.Kinds[models.KindCompany] = KindSpec{Code: "002"} }},
		{name: "code shared across collections", mutate: func(s *Scheme) { s.Kinds[models.KindDepartment] = KindSpec{Code: "002", SequenceWidth: 3} }},
		{name: "unknown kind", mutate: func(s *Scheme) { s.Kinds[models.Kind("invoice")] = KindSpec{Code: "009", SequenceWidth: 3} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultScheme()
			tt.mutate(&s)
			require.ErrorIs(t, s.Validate(), ErrInvalidScheme)
		})
	}
}

func TestLoadScheme(t *testing.T) {
	dir := t.TempDir()

	t.Run("override merges with defaults", func(t *testing.T) {
		path := filepath.Join(dir, "scheme.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
tenant_width: 5
kinds:
  department:
    code: "004"
    sequence_width: 4
`), 0o600))

		s, err := LoadScheme(path)
		require.NoError(t, err)
		require.Equal(t, 5, s.TenantWidth)
		require.Equal(t, KindSpec{Code: "004", SequenceWidth: 4}, s.Kinds[models.KindDepartment])
		require.Equal(t, KindSpec{Code: "002", SequenceWidth: 3}, s.Kinds[models.KindCompany])
	})

	t.Run("unknown field", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("tenant_digits: 5\n"), 0o600))

		_, err := LoadScheme(path)
		require.ErrorIs(t, err, ErrInvalidScheme)
	})

	t.Run("invalid result", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.yaml")
		require.NoError(t, os.WriteFile(path, []byte("tenant_width: 0\n"), 0o600))

		_, err := LoadScheme(path)
		require.ErrorIs(t, err, ErrInvalidScheme)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadScheme(filepath.Join(dir, "missing.yaml"))
		require.Error(t, err)
	})
}
