// Package store persists machines, sales, collections and settings in
// MySQL and exposes them through the engine's source interfaces.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"vending-reconciliation-service/internal/models"
	apperrors "vending-reconciliation-service/pkg/errors"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Setting keys read by the reconciliation engine
const (
	SettingReconciliationTolerance = "reconciliation_tolerance_percent"
	SettingShortageAlertThreshold  = "shortage_alert_threshold_percent"
)

// Defaults applied when a setting row is absent
var (
	DefaultTolerancePercent = decimal.NewFromInt(5)
	DefaultThresholdPercent = decimal.NewFromInt(10)
)

// Machine is the persisted fleet entry
type Machine struct {
	ID       uint   `gorm:"primary_key" json:"id"`
	Code     string `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Name     string `gorm:"size:255;not null" json:"name"`
	Location string `gorm:"size:255" json:"location"`
}

// SalesRecord is the persisted sale event
type SalesRecord struct {
	ID          string          `gorm:"primary_key;size:64" json:"id"`
	MachineCode string          `gorm:"size:64;index:idx_sales_machine_sold,priority:1;not null" json:"machine_code"`
	Method      string          `gorm:"size:16;not null" json:"method"`
	Status      string          `gorm:"size:16;not null" json:"status"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	SoldAt      time.Time       `gorm:"index:idx_sales_machine_sold,priority:2;not null" json:"sold_at"`
}

// CollectionRecord is the persisted cash collection event
type CollectionRecord struct {
	ID          uint            `gorm:"primary_key" json:"id"`
	MachineID   uint            `gorm:"index:idx_collections_machine_collected,priority:1;not null" json:"machine_id"`
	Operator    string          `gorm:"size:255" json:"operator"`
	CollectedAt time.Time       `gorm:"index:idx_collections_machine_collected,priority:2;not null" json:"collected_at"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Status      string          `gorm:"size:16;not null" json:"status"`
}

// Setting is a key/value configuration row
type Setting struct {
	Key   string `gorm:"primary_key;size:64" json:"key"`
	Value string `gorm:"size:255;not null" json:"value"`
}

// Store wraps a gorm connection and implements the engine sources
type Store struct {
	db *gorm.DB
}

// Config controls the MySQL connection
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns connection pool defaults
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    50,
		MaxIdleConns:    25,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DSNFromEnv assembles a MySQL DSN from environment variables, loading a
// .env file first when one is present.
func DSNFromEnv() string {
	godotenv.Load()
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_NAME"),
	)
}

// Open connects to MySQL and migrates the schema
func Open(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, apperrors.ConfigurationError(apperrors.CodeMissingConfig, "store.dsn", "database DSN is required")
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormlogger.Config{
				Colorful:      false,
				LogLevel:      gormlogger.Error,
				SlowThreshold: time.Second,
			},
		),
		NamingStrategy: &schema.NamingStrategy{SingularTable: false},
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeUnavailable,
			"cannot connect to database")
	}

	if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns >= 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if err := db.AutoMigrate(&Machine{}, &SalesRecord{}, &CollectionRecord{}, &Setting{}); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeWriteFailed,
			"schema migration failed")
	}

	return &Store{db: db}, nil
}

// NewStore wraps an existing gorm connection. Used by tests and by callers
// that manage the connection themselves.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListMachines returns the machine fleet ordered by code
func (s *Store) ListMachines(ctx context.Context) ([]*models.Machine, error) {
	var rows []Machine
	if err := s.db.WithContext(ctx).Order("code ASC").Find(&rows).Error; err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list machines", err)
	}

	machines := make([]*models.Machine, 0, len(rows))
	for _, row := range rows {
		machines = append(machines, &models.Machine{
			ID:       row.ID,
			Code:     row.Code,
			Name:     row.Name,
			Location: row.Location,
		})
	}
	return machines, nil
}

// ListSalesRecords returns sales with from < SoldAt <= to ascending by
// (SoldAt, ID). An empty machineCode matches every machine.
func (s *Store) ListSalesRecords(ctx context.Context, machineCode string, from, to time.Time) ([]*models.SalesRecord, error) {
	q := s.db.WithContext(ctx).
		Where("sold_at > ? AND sold_at <= ?", from, to).
		Order("sold_at ASC, id ASC")
	if machineCode != "" {
		q = q.Where("machine_code = ?", machineCode)
	}

	var rows []SalesRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list sales records", err)
	}

	records := make([]*models.SalesRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := salesRecordFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func salesRecordFromRow(row SalesRecord) (*models.SalesRecord, error) {
	method, err := models.ParsePaymentMethod(row.Method)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryData, apperrors.CodeInvalidRecord,
			fmt.Sprintf("sales record %s has unknown payment method", row.ID))
	}
	status, err := models.ParsePaymentStatus(row.Status)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryData, apperrors.CodeInvalidRecord,
			fmt.Sprintf("sales record %s has unknown payment status", row.ID))
	}
	return &models.SalesRecord{
		ID:          row.ID,
		MachineCode: row.MachineCode,
		Method:      method,
		Status:      status,
		Amount:      row.Amount,
		SoldAt:      row.SoldAt.UTC(),
	}, nil
}

// ListCollectionRecords returns non-cancelled collections with
// from <= CollectedAt <= to ascending by (CollectedAt, ID). When
// includeAnchorBefore is set, the latest received collection strictly
// before from is prepended per machine.
func (s *Store) ListCollectionRecords(ctx context.Context, machineID uint, from, to time.Time, includeAnchorBefore bool) ([]*models.CollectionRecord, error) {
	q := s.db.WithContext(ctx).
		Where("collected_at >= ? AND collected_at <= ?", from, to).
		Where("status <> ?", models.CollectionStatusCancelled.String()).
		Order("collected_at ASC, id ASC")
	if machineID != 0 {
		q = q.Where("machine_id = ?", machineID)
	}

	var rows []CollectionRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "list collection records", err)
	}

	if includeAnchorBefore {
		anchors, err := s.anchorsBefore(ctx, machineID, from)
		if err != nil {
			return nil, err
		}
		rows = append(anchors, rows...)
	}

	records := make([]*models.CollectionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := collectionRecordFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// anchorsBefore finds, per machine, the latest received collection with
// CollectedAt strictly before the cutoff.
func (s *Store) anchorsBefore(ctx context.Context, machineID uint, before time.Time) ([]CollectionRecord, error) {
	q := s.db.WithContext(ctx).
		Where("collected_at < ?", before).
		Where("status = ?", models.CollectionStatusReceived.String()).
		Order("collected_at DESC, id DESC")
	if machineID != 0 {
		q = q.Where("machine_id = ?", machineID)
	}

	var rows []CollectionRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperrors.StorageError(apperrors.CodeQueryFailed, "find anchor collections", err)
	}

	seen := make(map[uint]bool)
	var anchors []CollectionRecord
	for _, row := range rows {
		if seen[row.MachineID] {
			continue
		}
		seen[row.MachineID] = true
		anchors = append(anchors, row)
	}
	// restore ascending order for the prefix
	for i, j := 0, len(anchors)-1; i < j; i, j = i+1, j-1 {
		anchors[i], anchors[j] = anchors[j], anchors[i]
	}
	return anchors, nil
}

func collectionRecordFromRow(row CollectionRecord) (*models.CollectionRecord, error) {
	status, err := models.ParseCollectionStatus(row.Status)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryData, apperrors.CodeInvalidRecord,
			fmt.Sprintf("collection record %d has unknown status", row.ID))
	}
	return &models.CollectionRecord{
		ID:          row.ID,
		MachineID:   row.MachineID,
		Operator:    row.Operator,
		CollectedAt: row.CollectedAt.UTC(),
		Amount:      row.Amount,
		Status:      status,
	}, nil
}

// ReconciliationTolerance reads the tolerance percentage setting, falling
// back to the default when the row is absent.
func (s *Store) ReconciliationTolerance(ctx context.Context) (decimal.Decimal, error) {
	return s.decimalSetting(ctx, SettingReconciliationTolerance, DefaultTolerancePercent)
}

// ShortageAlertThreshold reads the alert threshold percentage setting,
// falling back to the default when the row is absent.
func (s *Store) ShortageAlertThreshold(ctx context.Context) (decimal.Decimal, error) {
	return s.decimalSetting(ctx, SettingShortageAlertThreshold, DefaultThresholdPercent)
}

func (s *Store) decimalSetting(ctx context.Context, key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	var row Setting
	err := s.db.WithContext(ctx).Where("`key` = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fallback, nil
	}
	if err != nil {
		return decimal.Zero, apperrors.StorageError(apperrors.CodeQueryFailed, "read setting "+key, err)
	}

	value, err := decimal.NewFromString(row.Value)
	if err != nil {
		return decimal.Zero, apperrors.Wrap(err, apperrors.CategoryConfiguration, apperrors.CodeInvalidConfig,
			fmt.Sprintf("setting %s is not a number: %q", key, row.Value))
	}
	return value, nil
}

// PutSetting upserts a configuration row
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	row := Setting{Key: key, Value: value}
	err := s.db.WithContext(ctx).Save(&row).Error
	if err != nil {
		return apperrors.StorageError(apperrors.CodeQueryFailed, "save setting "+key, err)
	}
	return nil
}
