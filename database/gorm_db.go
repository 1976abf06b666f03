package database

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	"unicode"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/camden-git/studiobackend/models"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// InitGormDB initializes and returns a GORM database instance for the given driver
func InitGormDB(driver, dataSourceName string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	return openGormDB(driver, dataSourceName, gormLogger)
}

func openGormDB(driver, dataSourceName string, gormLogger logger.Interface) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(dataSourceName)
	case DriverPostgres:
		dialector = postgres.Open(dataSourceName)
	default:
		return nil, fmt.Errorf("unsupported database driver '%s'", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database using GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	if driver == DriverPostgres {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	} else {
		// sqlite allows a single writer; serialising through one connection
		// avoids "database is locked" errors from concurrent workers
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			log.Printf("warning: failed to enable sqlite foreign keys: %v", err)
		}
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Printf("GORM Database initialized successfully (%s)", driver)
	return db, nil
}

// OpenTestDB opens a private in-memory sqlite database with all models migrated.
func OpenTestDB(name string) (*gorm.DB, error) {
	safe := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, name)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", safe)
	db, err := openGormDB(DriverSQLite, dsn, logger.Default.LogMode(logger.Silent))
	if err != nil {
		return nil, err
	}
	if err := AutoMigrateModels(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrateModels can be called after InitGormDB to migrate schemas
func AutoMigrateModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Team{},
		&models.User{},
		&models.Gallery{},
		&models.Photo{},
		&models.PhotoComment{},
	)
	if err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	log.Println("GORM AutoMigrate completed successfully.")
	return nil
}
