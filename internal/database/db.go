package database

import (
	"context"
	"database/sql"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/playhouse-booking/internal/config"
)

// DSN builds the driver connection string for conf.
func DSN(conf config.DBConfig) string {
	mc := mysql.NewConfig()
	mc.User = conf.User
	mc.Passwd = conf.Pass
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(conf.Host, conf.Port)
	mc.DBName = conf.Name
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	mc.ParseTime = true
	mc.Loc = time.UTC
	// RowsAffected counts matched rows so no-op updates are not misread as missing rows
	mc.ClientFoundRows = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// Open connects to MySQL and verifies the connection.
func Open(ctx context.Context, conf config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(conf))
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
