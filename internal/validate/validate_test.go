package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePackageName(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "vim", false},
		{"valid with version-like chars", "lib++_1.0-rc+dev", false},
		{"empty", "", true},
		{"leading dash", "-rf", true},
		{"leading dot", ".hidden", true},
		{"traversal", "../etc/passwd", true},
		{"injection attempt", "vim; rm -rf /", true},
		{"too long", strings.Repeat("a", 256), true},
		{"nul byte", "vim\x00", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePackageName(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateScopedPackageName(t *testing.T) {
	require.NoError(t, ValidateScopedPackageName("@scope/name"))
	require.Error(t, ValidateScopedPackageName("-@scope/name"))
	require.Error(t, ValidateScopedPackageName("@scope/../etc"))
}

func TestValidateVersion(t *testing.T) {
	require.NoError(t, ValidateVersion("1.2.3-rc1+build:meta~x"))
	require.Error(t, ValidateVersion(""))
	require.Error(t, ValidateVersion(strings.Repeat("1", 129)))
	require.Error(t, ValidateVersion("1.2.3; rm -rf"))
}

func TestValidateRelativePath(t *testing.T) {
	require.NoError(t, ValidateRelativePath("audit/audit.jsonl"))
	require.Error(t, ValidateRelativePath(""))
	require.Error(t, ValidateRelativePath("/etc/passwd"))
	require.Error(t, ValidateRelativePath("a/../b"))
	require.Error(t, ValidateRelativePath("a//b"))
	require.Error(t, ValidateRelativePath("a\x00b"))
}

func TestFingerprintDeterministicAndOpaque(t *testing.T) {
	a := Fingerprint("vim; rm -rf /")
	b := Fingerprint("vim; rm -rf /")
	c := Fingerprint("different value")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
	assert.NotContains(t, a, "rm")
}
