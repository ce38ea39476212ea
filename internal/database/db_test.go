package database

import (
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/playhouse-booking/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DBConfig{User: "app", Pass: "s3cret", Host: "db", Port: "3306", Name: "playhouse"})
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("parse %q: %v", dsn, err)
	}
	if mc.Addr != "db:3306" || mc.DBName != "playhouse" || mc.Passwd != "s3cret" {
		t.Fatalf("unexpected config %+v", mc)
	}
	if !mc.ParseTime || !mc.ClientFoundRows {
		t.Fatalf("expected parseTime and clientFoundRows, got %q", dsn)
	}
}

func TestStatements(t *testing.T) {
	stmts := Statements()
	if len(stmts) != 8 {
		t.Fatalf("expected 8 tables, got %d", len(stmts))
	}
	for _, s := range stmts {
		if !strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS") {
			t.Fatalf("unexpected statement %q", s)
		}
	}
}
