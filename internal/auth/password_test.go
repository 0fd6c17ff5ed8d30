package auth

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	HashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	require.NotEqual(t, "correct horse", hash)

	require.NoError(t, ComparePassword(hash, "correct horse"))
	require.ErrorIs(t, ComparePassword(hash, "battery staple"), ErrInvalidCredentials)
	require.ErrorIs(t, ComparePassword("not-a-hash", "correct horse"), ErrInvalidCredentials)
	require.ErrorIs(t, CompareDummy("correct horse"), ErrInvalidCredentials)
}

func TestPasswordLengthInBytes(t *testing.T) {
	// 40 characters but 80 bytes
	wide := strings.Repeat("é", 40)
	require.False(t, ValidPasswordLength(wide))

	_, err := HashPassword(wide)
	require.ErrorIs(t, err, ErrInvalidPassword)

	require.True(t, ValidPasswordLength(strings.Repeat("é", 36)))
	require.True(t, ValidPasswordLength(strings.Repeat("a", MaxPasswordLength)))
	require.False(t, ValidPasswordLength(strings.Repeat("a", MaxPasswordLength+1)))
	require.False(t, ValidPasswordLength("short"))
	require.True(t, ValidPasswordLength("ééééé"))

	_, err = HashPassword(strings.Repeat("é", 36))
	require.NoError(t, err)
}
