package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflake(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid 17 digits", "12345678901234567", false},
		{"valid 18 digits", "123456789012345678", false},
		{"valid 20 digits", "12345678901234567890", false},
		{"too short", "1234567890123456", true},
		{"too long", "123456789012345678901", true},
		{"empty", "", true},
		{"letters", "abc12345678901234", true},
		{"mixed", "12345678901234567a", true},
		{"embedded space", "1234567890 1234567", true},
		{"negative sign", "-1234567890123456", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Snowflake(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidSnowflake)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Alice", DisplayName("Alice"))
	assert.Equal(t, "Alice", DisplayName("  Alice  "))
	assert.Equal(t, FallbackDisplayName, DisplayName(""))
	assert.Equal(t, FallbackDisplayName, DisplayName("   "))
	assert.Equal(t, FallbackDisplayName, DisplayName(nil))
	assert.Equal(t, FallbackDisplayName, DisplayName(42.0))

	long := strings.Repeat("x", 250)
	got := DisplayName(long)
	assert.Len(t, got, MaxDisplayNameLen)

	// Truncation counts runes, not bytes.
	unicode := strings.Repeat("ü", 150)
	assert.Equal(t, MaxDisplayNameLen, len([]rune(DisplayName(unicode))))
}

func TestTimestamp(t *testing.T) {
	got, err := Timestamp(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = Timestamp(float64(1700000000000))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), *got)

	_, err = Timestamp(float64(-1))
	assert.ErrorIs(t, err, ErrInvalidTimestamp)

	_, err = Timestamp("1700000000000")
	assert.ErrorIs(t, err, ErrInvalidTimestamp)

	_, err = Timestamp(123.5)
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}

func TestNonNegativeInt(t *testing.T) {
	got, err := NonNegativeInt(float64(3600000))
	require.NoError(t, err)
	assert.Equal(t, int64(3600000), got)

	got, err = NonNegativeInt(0.0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	_, err = NonNegativeInt(-1.0)
	assert.ErrorIs(t, err, ErrInvalidNumber)

	_, err = NonNegativeInt(1.5)
	assert.ErrorIs(t, err, ErrInvalidNumber)

	_, err = NonNegativeInt("100")
	assert.ErrorIs(t, err, ErrInvalidNumber)
}

func TestNonNegativeFloat(t *testing.T) {
	got, err := NonNegativeFloat(float64(60))
	require.NoError(t, err)
	assert.Equal(t, 60.0, got)

	got, err = NonNegativeFloat(12.5)
	require.NoError(t, err)
	assert.Equal(t, 12.5, got)

	_, err = NonNegativeFloat(-0.5)
	assert.ErrorIs(t, err, ErrInvalidNumber)

	_, err = NonNegativeFloat(nil)
	assert.ErrorIs(t, err, ErrInvalidNumber)
}
