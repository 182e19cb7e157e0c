// Package store is the gateway's opaque client for the managed relational
// datastore. The gateway passes rows through without interpreting the
// schema; tables are managed by the backing service, not migrated here.
package store

import (
	"context"
	"errors"
	"fmt"

	"pelorus/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Row = map[string]any

type Filter = map[string]any

type Client interface {
	Select(ctx context.Context, table string, filter Filter, limit, offset int) ([]Row, error)
	Get(ctx context.Context, table, id string) (Row, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table, id string, fields Row) (Row, error)
	Delete(ctx context.Context, table, id string) error
}

type gormClient struct {
	db *gorm.DB
}

// Open connects to the managed datastore. An empty DSN yields a nil
// connection so the caller can fall back to the Unavailable client and
// still serve mocked and derived endpoints.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, nil
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// NewGorm wraps an existing connection, for callers that manage the pool
// themselves.
func NewGorm(db *gorm.DB) Client {
	return &gormClient{db: db}
}

func (c *gormClient) Select(ctx context.Context, table string, filter Filter, limit, offset int) ([]Row, error) {
	tx := c.db.WithContext(ctx).Table(table)
	if len(filter) > 0 {
		tx = tx.Where(map[string]any(filter))
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if offset > 0 {
		tx = tx.Offset(offset)
	}
	var rows []map[string]any
	if err := tx.Find(&rows).Error; err != nil {
		return nil, upstreamErr(err)
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

func (c *gormClient) Get(ctx context.Context, table, id string) (Row, error) {
	var row map[string]any
	err := c.db.WithContext(ctx).Table(table).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, upstreamErr(err)
	}
	return row, nil
}

func (c *gormClient) Insert(ctx context.Context, table string, row Row) (Row, error) {
	if err := c.db.WithContext(ctx).Table(table).Create(map[string]any(row)).Error; err != nil {
		return nil, upstreamErr(err)
	}
	return row, nil
}

func (c *gormClient) Update(ctx context.Context, table, id string, fields Row) (Row, error) {
	tx := c.db.WithContext(ctx).Table(table).Where("id = ?", id).Updates(map[string]any(fields))
	if tx.Error != nil {
		return nil, upstreamErr(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}
	return c.Get(ctx, table, id)
}

func (c *gormClient) Delete(ctx context.Context, table, id string) error {
	tx := c.db.WithContext(ctx).Table(table).Where("id = ?", id).Delete(nil)
	if tx.Error != nil {
		return upstreamErr(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func upstreamErr(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
}

// Unavailable satisfies Client when no datastore is configured. Every
// operation reports the upstream as unavailable.
type Unavailable struct{}

func (Unavailable) Select(context.Context, string, Filter, int, int) ([]Row, error) {
	return nil, domain.ErrUpstreamUnavailable
}

func (Unavailable) Get(context.Context, string, string) (Row, error) {
	return nil, domain.ErrUpstreamUnavailable
}

func (Unavailable) Insert(context.Context, string, Row) (Row, error) {
	return nil, domain.ErrUpstreamUnavailable
}

func (Unavailable) Update(context.Context, string, string, Row) (Row, error) {
	return nil, domain.ErrUpstreamUnavailable
}

func (Unavailable) Delete(context.Context, string, string) error {
	return domain.ErrUpstreamUnavailable
}
