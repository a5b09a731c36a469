package transform

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tempo-bot/tempomig/internal/testutil"
)

func TestRolePriority(t *testing.T) {
	tests := []struct {
		minHours float64
		want     int
	}{
		{150, 1},
		{100, 1},
		{99.9, 2},
		{60, 2},
		{50, 2},
		{49, 3},
		{20, 3},
		{19.5, 4},
		{10, 4},
		{9.9, 5},
		{0, 5},
	}
	for _, tt := range tests {
		testutil.Equal(t, tt.want, RolePriority(tt.minHours))
	}
}

func TestReportCycleWeeks(t *testing.T) {
	got, err := reportCycleWeeks(nil)
	testutil.NoError(t, err)
	testutil.Equal(t, int64(1), got)

	got, err = reportCycleWeeks(float64(0))
	testutil.NoError(t, err)
	testutil.Equal(t, int64(1), got)

	got, err = reportCycleWeeks(float64(3))
	testutil.NoError(t, err)
	testutil.Equal(t, int64(3), got)

	_, err = reportCycleWeeks(float64(-1))
	testutil.ErrorContains(t, err, "invalid number")

	_, err = reportCycleWeeks("weekly")
	testutil.ErrorContains(t, err, "invalid number")
}

func TestResultReject(t *testing.T) {
	var res Result
	res.reject("123", "invalid identifier format")
	res.reject("456", "principal not found: 456")
	testutil.SliceLen(t, res.Errors, 2)
	testutil.Equal(t, "123", res.Errors[0].Key)
	testutil.Equal(t, "invalid identifier format", res.Errors[0].Reason)
	testutil.Equal(t, 0, res.Processed)
}

func TestTxReason(t *testing.T) {
	constraint := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	got := txReason(constraint)
	testutil.True(t, len(got) > 0)
	testutil.Equal(t, "constraint violation", got[:20])

	plain := txReason(errString("connection reset"))
	testutil.Equal(t, "transaction failed: connection reset", plain)
}

type errString string

func (e errString) Error() string { return string(e) }

func TestNullIfEmpty(t *testing.T) {
	testutil.Nil(t, nullIfEmpty(""))
	got := nullIfEmpty("General")
	testutil.NotNil(t, got)
	testutil.Equal(t, "General", *got)
}
