package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"contesthub/internal/config"
	"contesthub/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open 连接数据库并设置连接池。TranslateError 让唯一约束/外键冲突
// 以 gorm.ErrDuplicatedKey / gorm.ErrForeignKeyViolated 的形式返回。
func Open(ctx context.Context, cfg config.DBConfig, log *slog.Logger) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		TranslateError: true,
		Logger:         newGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	log.Info("database connection established")
	return gdb, nil
}

// Migrate 自动迁移。submissions 表由外部系统维护，这里只保证它存在，
// 以便 votes/comments 的外键可以级联删除。
func Migrate(gdb *gorm.DB) error {
	err := gdb.AutoMigrate(
		&models.Submission{},
		&models.Vote{},
		&models.Comment{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Checker 健康检查用的数据库探针。
type Checker struct {
	db *sql.DB
}

func NewChecker(db *sql.DB) *Checker {
	return &Checker{db: db}
}

func (c *Checker) Name() string {
	return "postgres"
}

func (c *Checker) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// slogWriter 把 gorm 的日志转到 slog
type slogWriter struct {
	log *slog.Logger
}

func (w slogWriter) Printf(format string, args ...interface{}) {
	w.log.Warn(fmt.Sprintf(format, args...), "component", "gorm")
}

func newGormLogger(log *slog.Logger) gormlogger.Interface {
	return gormlogger.New(slogWriter{log: log}, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
