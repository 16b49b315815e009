package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"gorm.io/gorm"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/logger"
)

// GormBackend replays actions straight into a SQL database, for hubs that
// keep their own copy of the appliance and profile tables.
//
// Collections are table names; the tables must already exist.
type GormBackend struct {
	db *gorm.DB
}

// NewGormBackend wraps db.
func NewGormBackend(db *gorm.DB) *GormBackend {
	return &GormBackend{db: db}
}

// Insert implements Backend.
func (g *GormBackend) Insert(ctx context.Context, collection string, record map[string]any) error {
	row, err := columnValues(record)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	if err := g.db.WithContext(ctx).Table(collection).Create(row).Error; err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	logger.DebugCtx(ctx, "Row inserted", logger.KeyCollection, collection)
	return nil
}

// Update implements Backend. Matching no rows returns ErrNotFound.
func (g *GormBackend) Update(ctx context.Context, collection string, filter Filter, values map[string]any) error {
	row, err := columnValues(values)
	if err != nil {
		return fmt.Errorf("update %s: %w", collection, err)
	}
	result := g.db.WithContext(ctx).Table(collection).Where(map[string]any(filter)).Updates(row)
	if result.Error != nil {
		return fmt.Errorf("update %s: %w", collection, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update %s: %w", collection, ErrNotFound)
	}
	logger.DebugCtx(ctx, "Rows updated", logger.KeyCollection, collection, logger.KeyCount, result.RowsAffected)
	return nil
}

// Delete implements Backend. Matching no rows returns ErrNotFound.
func (g *GormBackend) Delete(ctx context.Context, collection string, filter Filter) error {
	if len(filter) == 0 {
		return fmt.Errorf("delete from %s: refusing to delete without a filter", collection)
	}
	result := g.db.WithContext(ctx).Table(collection).Where(map[string]any(filter)).Delete(map[string]any{})
	if result.Error != nil {
		return fmt.Errorf("delete from %s: %w", collection, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("delete from %s: %w", collection, ErrNotFound)
	}
	logger.DebugCtx(ctx, "Rows deleted", logger.KeyCollection, collection, logger.KeyCount, result.RowsAffected)
	return nil
}

// columnValues copies row for the driver. Nested objects and arrays from
// action data are stored as JSON text, which database/sql cannot bind as-is.
func columnValues(row map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(row))
	for k, v := range row {
		switch v.(type) {
		case nil, []byte, time.Time, json.RawMessage:
			out[k] = v
			continue
		}
		switch reflect.TypeOf(v).Kind() {
		case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode column %s: %w", k, err)
			}
			out[k] = string(data)
		default:
			out[k] = v
		}
	}
	return out, nil
}
