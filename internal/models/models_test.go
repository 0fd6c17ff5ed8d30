package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRegistration(t *testing.T) {
	tests := []struct {
		in      string
		want    Registration
		wantErr bool
	}{
		{in: "001.0001.000", want: Registration{Code: "001", Tenant: "0001", Sequence: "000"}},
		{in: "003.0042.017", want: Registration{Code: "003", Tenant: "0042", Sequence: "017"}},
		{in: "001.0001", wantErr: true},
		{in: "001.0001.000.1", wantErr: true},
		{in: "001..000", wantErr: true},
		{in: "00a.0001.000", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRegistration(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidRegistration)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.in, got.String())
		})
	}
}

func TestSameTenant(t *testing.T) {
	require.True(t, SameTenant("001.0001.000", "002.0001.005"))
	require.False(t, SameTenant("001.0001.000", "002.0002.001"))
	require.False(t, SameTenant("garbage", "garbage"))
}

func TestRoleAtLeast(t *testing.T) {
	require.True(t, RoleAdmin.AtLeast(RoleManager))
	require.True(t, RoleManager.AtLeast(RoleManager))
	require.False(t, RoleUser.AtLeast(RoleManager))
	require.False(t, Role("root").AtLeast(RoleUser))
	require.True(t, RoleUser.Valid())
	require.False(t, Role("").Valid())
}

func TestUserRoles(t *testing.T) {
	admin := &User{Meta: Meta{Registration: "001.0001.000", Owner: "001.0001.000"}, Role: RoleAdmin}
	require.True(t, admin.IsAdmin())
	require.True(t, admin.IsManager())
	require.Equal(t, KindAdmin, admin.Resource().Kind)

	manager := &User{Meta: Meta{Registration: "001.0001.001", Owner: "001.0001.000"}, Role: RoleManager}
	require.False(t, manager.IsAdmin())
	require.True(t, manager.IsManager())
	require.Equal(t, KindUser, manager.Resource().Kind)
}

func TestKind(t *testing.T) {
	require.Equal(t, "users", KindAdmin.Collection())
	require.Equal(t, "users", KindUser.Collection())
	require.Equal(t, "companies", KindCompany.Collection())
	require.Equal(t, "departments", KindDepartment.Collection())

	require.True(t, KindCompany.Searchable("description"))
	require.False(t, KindUser.Searchable("description"))
	require.False(t, KindUser.Searchable("password"))
	require.True(t, KindUser.Searchable("email"))

	require.Equal(t, &ActionResult{Action: "delete", Message: "Department deleted successfully"}, Deleted(KindDepartment))
}
