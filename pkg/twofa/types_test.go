package twofa

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLoginAttemptID(t *testing.T) {
	valid := uuid.NewString()

	id, err := ParseLoginAttemptID(valid)
	require.NoError(t, err)
	assert.Equal(t, valid, id.String())

	for _, raw := range []string{"", "not-a-uuid", "123"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseLoginAttemptID(raw)
			assert.ErrorIs(t, err, ErrInvalidLoginAttemptID)
		})
	}
}

func TestNewLoginAttemptID(t *testing.T) {
	a := NewLoginAttemptID()
	b := NewLoginAttemptID()

	parsed, err := uuid.Parse(a.String())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
	assert.NotEqual(t, a, b)
}

func TestParseTwoFACode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "six digits", raw: "123456"},
		{name: "six alphanumerics", raw: "a1B2c3"},
		{name: "padded six", raw: " 123456 "},
		{name: "five", raw: "12345", wantErr: true},
		{name: "seven", raw: "1234567", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := ParseTwoFACode(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTwoFACode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.raw, code.String())
		})
	}
}

func TestGenerateTwoFACode(t *testing.T) {
	code, err := GenerateTwoFACode()
	require.NoError(t, err)
	assert.Len(t, code.String(), TwoFACodeLength)

	_, err = ParseTwoFACode(code.String())
	assert.NoError(t, err)
}
