package data

import (
	academicdata "github.com/aylahq/ayla-backend/internal/academic/data"
	"github.com/aylahq/ayla-backend/internal/conf"
	"github.com/aylahq/ayla-backend/internal/pkg/database"
	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"github.com/aylahq/ayla-backend/internal/pkg/minio"
	"github.com/aylahq/ayla-backend/internal/pkg/redis"
	shadowdata "github.com/aylahq/ayla-backend/internal/shadow/data"
	workspacedata "github.com/aylahq/ayla-backend/internal/workspace/data"
	"go.uber.org/zap"
)

// Data aggregates the infrastructure clients shared by every domain
type Data struct {
	DB    *database.DB
	Redis *redis.Client
	MinIO *minio.Client
}

// NewData connects the database, redis and object storage, and runs the
// schema migration. The returned cleanup closes everything in reverse
// order of creation.
func NewData(cfg *conf.Config, log *logger.Logger) (*Data, func(), error) {
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	rdb, err := redis.New(&cfg.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	blobs, err := minio.New(&cfg.MinIO, log)
	if err != nil {
		_ = rdb.Close()
		_ = db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := rdb.Close(); err != nil {
			log.Warn("redis close failed", zap.Error(err))
		}
		if err := db.Close(); err != nil {
			log.Warn("database close failed", zap.Error(err))
		}
		log.Info("infrastructure closed")
	}

	return &Data{DB: db, Redis: rdb, MinIO: blobs}, cleanup, nil
}

// migrate creates or updates every table the domains persist to
func migrate(db *database.DB) error {
	return db.AutoMigrate(
		&shadowdata.ManagedFilePO{},
		&shadowdata.ContextCachePO{},
		&workspacedata.WorkspacePO{},
		&workspacedata.WorkspaceFilePO{},
		&academicdata.DeadlinePO{},
		&academicdata.ReminderPO{},
	)
}
