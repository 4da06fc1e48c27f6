// Package database opens the GORM connection used by the SQL order store and
// manages its pool: sizing, periodic health checks and transactions with
// retry on transient failures.
//
// Supported drivers are postgres, mysql and sqlite. SQLite goes through the
// pure Go github.com/glebarez/sqlite driver so binaries build without cgo.
package database
