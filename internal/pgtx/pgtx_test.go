package pgtx

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tempo-bot/tempomig/internal/testutil"
)

func TestObserveLogsSlowStatements(t *testing.T) {
	var buf bytes.Buffer
	m := &Manager{
		logger:        slog.New(slog.NewTextHandler(&buf, nil)),
		slowThreshold: 10 * time.Millisecond,
	}

	m.observe("SELECT 1", 5*time.Millisecond)
	testutil.Equal(t, "", buf.String())

	m.observe("INSERT INTO principals\n\t(id) VALUES ($1)", 20*time.Millisecond)
	out := buf.String()
	testutil.True(t, strings.Contains(out, "slow statement"), "slow statement warned")
	testutil.True(t, strings.Contains(out, "INSERT INTO principals (id) VALUES ($1)"),
		"log carries the collapsed preview")
}

func TestPreview(t *testing.T) {
	testutil.Equal(t, "SELECT 1", Preview("SELECT 1"))
	testutil.Equal(t, "SELECT id FROM principals WHERE id = $1",
		Preview("SELECT id\n\tFROM principals\n\tWHERE id = $1"))

	long := "SELECT " + strings.Repeat("x", 300)
	got := Preview(long)
	testutil.Equal(t, 123, len(got))
	testutil.True(t, strings.HasSuffix(got, "..."), "truncated preview ends with ellipsis")
}

func TestErrorClassification(t *testing.T) {
	fk := &pgconn.PgError{Code: "23503"}
	uniq := &pgconn.PgError{Code: "23505"}
	check := &pgconn.PgError{Code: "23514"}
	undefined := &pgconn.PgError{Code: "42P01"}

	testutil.True(t, IsForeignKeyViolation(fk))
	testutil.False(t, IsForeignKeyViolation(uniq))

	testutil.True(t, IsUniqueViolation(uniq))
	testutil.False(t, IsUniqueViolation(fk))

	testutil.True(t, IsConstraintViolation(fk))
	testutil.True(t, IsConstraintViolation(uniq))
	testutil.True(t, IsConstraintViolation(check))
	testutil.False(t, IsConstraintViolation(undefined))
	testutil.False(t, IsConstraintViolation(nil))
}
