package db

import (
	"fmt"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/coding-arena/internal/course"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens the database named by dsn and migrates the schema.
//
// A dsn starting with "sqlite:" or "file:" opens a SQLite database (the
// "sqlite:" prefix is stripped); anything else is handed to the MySQL driver.
func Connect(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	var (
		gdb *gorm.DB
		err error
	)
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		gdb, err = gorm.Open(gormsqlite.Open(strings.TrimPrefix(dsn, "sqlite:")), cfg)
	case strings.HasPrefix(dsn, "file:"):
		gdb, err = gorm.Open(gormsqlite.Open(dsn), cfg)
	default:
		gdb, err = gorm.Open(mysql.Open(dsn), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := gdb.AutoMigrate(course.Models()...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return gdb, nil
}
