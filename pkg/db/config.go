package db

import "time"

// Config selects the line-item store. Type is postgres, mysql or sqlite;
// for sqlite Name is the database file.
type Config struct {
	Type     string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string

	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}
