package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestDumpWalksChain(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_pkey", TableName: "orders"}
	err := Wrap(CodeDependency, fmt.Errorf("insert order: %w", pgErr), "persist order")

	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", d.Code)
	}
	if !d.Retryable {
		t.Fatalf("dependency errors should dump as retryable")
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(d.Chain), d.Chain)
	}
	if d.PGCode != "23505" || d.PGConstraint != "orders_pkey" || d.PGTable != "orders" {
		t.Fatalf("postgres attributes not extracted: %+v", d)
	}

	fields := d.Fields()
	if fields["pg_code"] != "23505" {
		t.Fatalf("expected pg_code field, got %v", fields["pg_code"])
	}
	if _, ok := fields["pg_detail"]; ok {
		t.Fatalf("empty pg_detail should be omitted")
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || len(d.Chain) != 0 {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
