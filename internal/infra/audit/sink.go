package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"pelorus/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// entryModel is the trail's table shape. The trail is the one table the
// gateway owns, so it migrates it itself.
type entryModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	CallerID  string `gorm:"size:128;index"`
	Endpoint  string `gorm:"size:128"`
	Method    string `gorm:"size:16"`
	Outcome   string `gorm:"size:16"`
	Metadata  []byte
	CreatedAt time.Time
}

func (entryModel) TableName() string { return "gateway_audit_trail" }

type GormSink struct {
	db *gorm.DB
}

func NewGormSink(db *gorm.DB) (*GormSink, error) {
	if err := db.AutoMigrate(&entryModel{}); err != nil {
		return nil, fmt.Errorf("migrate audit trail: %w", err)
	}
	return &GormSink{db: db}, nil
}

func (s *GormSink) Append(ctx context.Context, rec domain.AuditRecord) error {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return err
	}
	model := entryModel{
		ID:        uuid.NewString(),
		CallerID:  rec.CallerID,
		Endpoint:  rec.Endpoint,
		Method:    rec.Method,
		Outcome:   string(rec.Outcome),
		Metadata:  metadata,
		CreatedAt: rec.Timestamp.UTC(),
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// LogSink writes trail entries to the server log. Used when no datastore is
// configured so the trail still lands somewhere inspectable.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Append(_ context.Context, rec domain.AuditRecord) error {
	s.log.Info("audit",
		"caller_id", rec.CallerID,
		"endpoint", rec.Endpoint,
		"method", rec.Method,
		"outcome", string(rec.Outcome),
		"metadata", rec.Metadata,
	)
	return nil
}
