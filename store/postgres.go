package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"narrator/logging"
	"narrator/models"
)

// jobRecord is the gorm model behind Postgres.
type jobRecord struct {
	JobID        string `gorm:"primaryKey"`
	Status       string `gorm:"index;not null"`
	Progress     int
	CurrentStep  string
	VideoPath    string
	SubtitlePath string
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (jobRecord) TableName() string {
	return "render_jobs"
}

func toRecord(job models.JobStatus) jobRecord {
	return jobRecord{
		JobID:        job.JobID,
		Status:       job.Status,
		Progress:     job.Progress,
		CurrentStep:  job.CurrentStep,
		VideoPath:    job.VideoPath,
		SubtitlePath: job.SubtitlePath,
		Error:        job.Error,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

func (r jobRecord) status() models.JobStatus {
	return models.JobStatus{
		JobID:        r.JobID,
		Status:       r.Status,
		Progress:     r.Progress,
		CurrentStep:  r.CurrentStep,
		VideoPath:    r.VideoPath,
		SubtitlePath: r.SubtitlePath,
		Error:        r.Error,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// Postgres stores jobs in a shared database so several API replicas can
// answer status requests.
type Postgres struct {
	db *gorm.DB
}

// OpenPostgres connects and migrates the jobs table.
func OpenPostgres(dsn string, log *slog.Logger) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database connection test failed: %w", err)
	}
	if err := db.AutoMigrate(&jobRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logging.NewComponentLogger(log, "store").Info("database connected")
	return &Postgres{db: db}, nil
}

func (p *Postgres) Create(ctx context.Context, job models.JobStatus) error {
	rec := toRecord(job)
	return p.db.WithContext(ctx).Create(&rec).Error
}

func (p *Postgres) Update(ctx context.Context, job models.JobStatus) error {
	rec := toRecord(job)
	res := p.db.WithContext(ctx).Model(&jobRecord{}).Where("job_id = ?", job.JobID).
		Select("status", "progress", "current_step", "video_path", "subtitle_path", "error", "updated_at").
		Updates(&rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, jobID string) (models.JobStatus, error) {
	var rec jobRecord
	err := p.db.WithContext(ctx).Where("job_id = ?", jobID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.JobStatus{}, ErrNotFound
	}
	if err != nil {
		return models.JobStatus{}, err
	}
	return rec.status(), nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
