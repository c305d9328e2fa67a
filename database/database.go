package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/taohansen/blog-backend/config"
	"github.com/taohansen/blog-backend/errs"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

const (
	TypeCouchDB  = "couchdb"
	TypePostgres = "postgres"
	TypeSupabase = "supa"
	TypeSQLite   = "sqlite"
)

// New picks the post store named by DB_TYPE. CouchDB is the default.
func New(cfg map[string]string) (PostStore, error) {
	dbType := strings.ToLower(config.GetString(cfg, "DB_TYPE", TypeCouchDB))
	log.Info().Str("dbType", dbType).Msg("selecting post store")

	switch dbType {
	case TypeCouchDB:
		return NewCouchStore(CouchConfig{
			URI:      config.GetString(cfg, "COUCHDB_URI", "http://localhost:5984"),
			Username: config.GetString(cfg, "COUCHDB_USERNAME", ""),
			Password: config.GetString(cfg, "COUCHDB_PASSWORD", ""),
			Database: config.GetString(cfg, "COUCHDB_DATABASE", DefaultCouchDatabase),
			Timeout:  time.Duration(config.GetInt(cfg, "COUCHDB_TIMEOUT_SECONDS", 30)) * time.Second,
		})
	case TypePostgres, TypeSupabase:
		dsn := config.GetString(cfg, "DATABASE_DSN", "")
		if dbType == TypeSupabase {
			dsn = supabaseDSN(cfg)
		}
		if dsn == "" {
			return nil, errs.NewMissingRequiredFieldError("DATABASE_DSN")
		}
		db, err := OpenGorm(postgresDialector(dsn), replicaDialectors(cfg))
		if err != nil {
			return nil, err
		}
		return NewGormStore(db), nil
	case TypeSQLite:
		db, err := OpenGorm(sqlite.Open(config.GetString(cfg, "DATABASE_DSN", "blog.db")), nil)
		if err != nil {
			return nil, err
		}
		return NewGormStore(db), nil
	default:
		return nil, errs.NewValidationError("DB_TYPE", fmt.Sprintf("unsupported store %q", dbType))
	}
}

// OpenGorm connects to the primary and, when replicas are given, registers
// them with dbresolver so plain reads are spread across them.
func OpenGorm(primary gorm.Dialector, replicas []gorm.Dialector) (*gorm.DB, error) {
	gormLogger := logger.New(
		&log.Logger,
		logger.Config{
			SlowThreshold:             10 * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(primary, &gorm.Config{
		PrepareStmt: false,
		Logger:      gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if len(replicas) > 0 {
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		})
		if err := db.Use(resolver); err != nil {
			return nil, fmt.Errorf("registering read replicas: %w", err)
		}
		log.Info().Int("replicas", len(replicas)).Msg("read replicas registered")
	}

	var result int
	if err := db.Raw("SELECT 1").Scan(&result).Error; err != nil {
		return nil, fmt.Errorf("testing database connection: %w", err)
	}
	return db, nil
}

func postgresDialector(dsn string) gorm.Dialector {
	return postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	})
}

func replicaDialectors(cfg map[string]string) []gorm.Dialector {
	var replicas []gorm.Dialector
	for _, dsn := range config.GetStrings(cfg, "DATABASE_REPLICA_DSNS", nil) {
		replicas = append(replicas, postgresDialector(dsn))
	}
	return replicas
}

func supabaseDSN(cfg map[string]string) string {
	host := config.GetString(cfg, "SUPABASE_DB_HOST", "")
	if host == "" {
		return ""
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=require",
		host,
		config.GetString(cfg, "SUPABASE_DB_USER", ""),
		config.GetString(cfg, "SUPABASE_DB_PASSWORD", ""),
		config.GetString(cfg, "SUPABASE_DB_NAME", ""),
		config.GetString(cfg, "SUPABASE_DB_PORT", "5432"),
	)
}
