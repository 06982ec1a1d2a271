package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

func init() {
	// Load env from .env
	godotenv.Load()
}

// ConnectDatabase opens the document store and sets the global DB.
//
// DB_DRIVER=sqlite (default) opens a local single-writer file, which matches
// the one-active-session model the back office runs under. DB_DRIVER=mysql is
// for hosted deployments and reads the same DB_* env vars the previous stack
// used.
func ConnectDatabase() error {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))
	if driver == "" {
		driver = "sqlite"
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var err error
	switch driver {
	case "sqlite":
		dbPath := os.Getenv("DB_PATH")
		if dbPath == "" {
			dbPath = "bakery.db"
		}
		db, err = gorm.Open(sqlite.Open(dbPath), gormConfig)
	case "mysql":
		dbUser := os.Getenv("DB_USER")
		dbPassword := os.Getenv("DB_PASSWORD")
		dbHost := os.Getenv("DB_HOST")
		dbPort := os.Getenv("DB_PORT")
		dbName := os.Getenv("DB_NAME")
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?multiStatements=true&parseTime=true",
			dbUser, dbPassword, dbHost, dbPort, dbName)
		db, err = gorm.Open(mysql.Open(dsn), gormConfig)
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", driver)
	}
	if err != nil {
		return fmt.Errorf("connect database (%s): %w", driver, err)
	}
	return nil
}

// ConnectDatabaseWithRetry keeps trying until the database is reachable.
// Call this from main() AFTER the HTTP server is listening.
func ConnectDatabaseWithRetry() {
	for {
		if err := ConnectDatabase(); err != nil {
			log.Printf("database not ready, retrying: %v", err)
			time.Sleep(3 * time.Second)
			continue
		}
		return
	}
}
