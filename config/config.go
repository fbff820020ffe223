// Package config provides environment-driven configuration for the viewer360 server:
// build metadata, log level, and the folders used for the database, logs and uploads.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

// LoadEnv reads a .env file from the working directory if one exists.
// Variables already present in the environment are not overwritten.
func LoadEnv() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		}
	}
}

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv("VIEWER360_LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func IsDebug() bool {
	return os.Getenv("VIEWER360_DEBUG") == "true"
}

func GetDBFolderPath() string {
	dbFolderPath := os.Getenv("VIEWER360_DB_FOLDER")
	if dbFolderPath == "" {
		dbFolderPath = "/etc/viewer360"
	}
	return dbFolderPath
}

func GetDBPath() string {
	return fmt.Sprintf("%s/%s.db", GetDBFolderPath(), GetName())
}

func GetLogFolder() string {
	logFolderPath := os.Getenv("VIEWER360_LOG_FOLDER")
	if logFolderPath == "" {
		logFolderPath = "/var/log"
	}
	return logFolderPath
}

// GetUploadDir returns the directory that holds the "uploads" tree.
// Stored paths such as "uploads/images/x.jpg" are resolved against it.
func GetUploadDir() string {
	dir := os.Getenv("VIEWER360_UPLOAD_DIR")
	if dir == "" {
		dir = filepath.Join(GetDBFolderPath(), "data")
	}
	return dir
}

// GetRedisAddr returns the external redis address. Empty means an embedded server is used.
func GetRedisAddr() string {
	return os.Getenv("VIEWER360_REDIS_ADDR")
}

// UseRedisSessions reports whether sessions should live in redis instead of cookies.
func UseRedisSessions() bool {
	return os.Getenv("VIEWER360_SESSION_STORE") == "redis"
}
