// Package database owns the gorm connection shared by every service.
package database

import (
	"errors"
	"io/fs"
	"os"
	"path"

	"github.com/viewer360/viewer360/config"
	"github.com/viewer360/viewer360/database/model"
	"github.com/viewer360/viewer360/logger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	db       *gorm.DB
	dbConfig *config.DatabaseConfig
)

func initModels() error {
	models := []any{
		&model.User{},
		&model.Panorama{},
		&model.Marker{},
		&model.Vote{},
		&model.Setting{},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			logger.Errorf("Error auto migrating model: %v", err)
			return err
		}
	}
	return nil
}

func gormConfig() *gorm.Config {
	var l gormlogger.Interface
	if config.IsDebug() {
		l = gormlogger.Default
	} else {
		l = gormlogger.Discard
	}
	return &gorm.Config{
		Logger:                 l,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	}
}

// InitDB opens (creating if needed) the sqlite database at dbPath and migrates the schema.
func InitDB(dbPath string) error {
	return InitDBWithConfig(&config.DatabaseConfig{
		Type:   config.DatabaseTypeSQLite,
		SQLite: config.SQLiteConfig{Path: dbPath},
	})
}

// InitDBWithConfig opens the database described by c and migrates the schema.
func InitDBWithConfig(c *config.DatabaseConfig) error {
	if err := c.ValidateConfig(); err != nil {
		return err
	}

	var dialector gorm.Dialector
	switch c.Type {
	case config.DatabaseTypePostgreSQL:
		dialector = postgres.Open(c.GetDSN())
	default:
		if err := os.MkdirAll(path.Dir(c.SQLite.Path), fs.ModePerm); err != nil {
			return err
		}
		dialector = sqlite.Open(c.GetDSN())
	}

	var err error
	db, err = gorm.Open(dialector, gormConfig())
	if err != nil {
		return err
	}
	dbConfig = c

	if c.IsSQLite() {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if _, err = sqlDB.Exec("PRAGMA temp_store = MEMORY;"); err != nil {
			return err
		}
	}

	return initModels()
}

func CloseDB() error {
	if db == nil {
		return nil
	}
	if err := Checkpoint(); err != nil {
		logger.Warning("error executing checkpoint:", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	err = sqlDB.Close()
	db = nil
	return err
}

func GetDB() *gorm.DB {
	return db
}

func IsSQLite() bool {
	return dbConfig == nil || dbConfig.IsSQLite()
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports a unique constraint violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// Checkpoint flushes the sqlite WAL into the main database file.
func Checkpoint() error {
	if db == nil || !IsSQLite() {
		return nil
	}
	return db.Exec("PRAGMA wal_checkpoint;").Error
}
