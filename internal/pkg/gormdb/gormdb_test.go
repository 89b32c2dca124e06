package gormdb

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type widget struct {
	ID   string `gorm:"primaryKey;size:32"`
	Name string
}

func TestOpen_SQLiteMigratesAndTranslatesDuplicates(t *testing.T) {
	db, err := Open(Config{
		Driver:   DriverSQLite,
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), &widget{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	require.NoError(t, db.Create(&widget{ID: "w1", Name: "first"}).Error)
	err = db.Create(&widget{ID: "w1", Name: "again"}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "unsupported driver")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, parseLogLevel("debug"))
	assert.Equal(t, gormlogger.Error, parseLogLevel("error"))
	assert.Equal(t, gormlogger.Silent, parseLogLevel("silent"))
	assert.Equal(t, gormlogger.Warn, parseLogLevel(""))
}
