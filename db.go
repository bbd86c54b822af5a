package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newGormLogger logs slow queries and real errors. Lookups that find no row
// are an expected branch in the engine and stay out of the log.
func newGormLogger(w logger.Writer) logger.Interface {
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// OpenDB opens the store. sqlite runs on a single connection so that every
// transaction is serialized; mysql relies on row locks taken by the engine.
func OpenDB(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         newGormLogger(log.New(os.Stdout, "\r\n", log.LstdFlags)),
	}
	switch driver {
	case "", "sqlite":
		db, err := gorm.Open(sqlite.Open(sqliteDSN(dsn)), cfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	case "mysql":
		return gorm.Open(mysql.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported database type %q", driver)
	}
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Group{},
		&GroupMember{},
		&Task{},
		&TaskQuestion{},
		&TaskSubmission{},
		&TaskVote{},
		&RatingEvent{},
		&Topic{},
		&TopicQuestion{},
		&LearningSession{},
		&SessionResponse{},
	)
}

func IsTopicTableEmpty(db *gorm.DB) (bool, error) {
	var count int64
	if err := db.Model(&Topic{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count == 0, nil
}

// isUniqueViolation recognises a rejected insert on a unique index, whether
// or not the dialect translated it.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry")
}
