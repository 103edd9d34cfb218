package db

import (
	"fmt"
	"sync/atomic"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/coopledger/internal/config"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

// NewTest opens a private in-memory SQLite database. The pool holds a single
// connection, so every statement issued inside a transaction must go through
// that transaction's handle.
func NewTest(models ...any) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:coopledger_test_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", testDBSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if len(models) > 0 {
		if err := conn.AutoMigrate(models...); err != nil {
			return nil, err
		}
	}
	return conn, nil
}

// NewTestFile opens the SQLite file at path through the production dialect
// with up to maxOpen pooled connections. Concurrent transactions then contend
// on the database lock instead of queueing on a single connection.
func NewTestFile(path string, maxOpen int, models ...any) (*gorm.DB, error) {
	dialector, err := Dialect(config.Config{DBType: "sqlite", DBPath: path})
	if err != nil {
		return nil, err
	}
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if maxOpen < 2 {
		maxOpen = 2
	}
	sqlDB.SetMaxOpenConns(maxOpen)

	if err := conn.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return nil, err
	}
	if len(models) > 0 {
		if err := conn.AutoMigrate(models...); err != nil {
			return nil, err
		}
	}
	return conn, nil
}
