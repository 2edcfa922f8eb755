package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/galaxychat-backend/internal/platform/envutil"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(logg *logger.Logger) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService")

	postgresHost := envutil.String("POSTGRES_HOST", "localhost", logg)
	postgresPort := envutil.String("POSTGRES_PORT", "5432", logg)
	postgresUser := envutil.String("POSTGRES_USER", "postgres", logg)
	postgresPassword := envutil.String("POSTGRES_PASSWORD", "", logg)
	postgresName := envutil.String("POSTGRES_NAME", "galaxychat", logg)

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser,
		postgresPassword,
		postgresHost,
		postgresPort,
		postgresName,
	)
	db, err := OpenPostgres(dsn)
	if err != nil {
		return nil, err
	}
	serviceLog.Info("Connected to Postgres", "host", postgresHost, "name", postgresName)
	return &PostgresService{db: db, log: serviceLog}, nil
}

// OpenPostgres opens a pgx-backed gorm handle for dsn.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return db, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func gormConfig() *gorm.Config {
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLog,
		NowFunc: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}
}
