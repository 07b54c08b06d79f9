// Package clickhouse provides the ClickHouse estimate ledger.
// Comprehensive estimates are appended to a MergeTree table for later review
// and reporting; the ledger is optional and never on the pricing path.
package clickhouse

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"portcall-cost/decision/fees"
)

// EstimateRecord is one ledger row
type EstimateRecord struct {
	EstimateID      uuid.UUID       `ch:"estimate_id" json:"estimate_id"`
	CreatedAt       time.Time       `ch:"created_at" json:"created_at"`
	VesselName      string          `ch:"vessel_name" json:"vessel_name"`
	VesselType      string          `ch:"vessel_type" json:"vessel_type"`
	ArrivalPort     string          `ch:"arrival_port" json:"arrival_port"`
	PortZone        string          `ch:"port_zone" json:"port_zone"`
	ETA             time.Time       `ch:"eta" json:"eta"`
	ContractProfile string          `ch:"contract_profile" json:"contract_profile,omitempty"`
	MandatoryTotal  decimal.Decimal `ch:"mandatory_total" json:"mandatory_total"`
	OptionalLow     decimal.Decimal `ch:"optional_low" json:"optional_low"`
	OptionalHigh    decimal.Decimal `ch:"optional_high" json:"optional_high"`
	Confidence      float64         `ch:"confidence" json:"confidence"`
	FeeCodes        []string        `ch:"fee_codes" json:"fee_codes"`
	IsWeekend       bool            `ch:"is_weekend" json:"is_weekend"`
	IsHoliday       bool            `ch:"is_holiday" json:"is_holiday"`
	PayloadHash     string          `ch:"payload_hash" json:"payload_hash"`
	Payload         string          `ch:"payload" json:"-"`
}

// Config holds ClickHouse connection configuration
type Config struct {
	Addr     []string
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:     []string{"localhost:9000"},
		Database: "portcost",
		Username: "default",
		Password: "",
		Debug:    false,
	}
}

// Store is the ClickHouse estimate ledger
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

// NewStore opens a connection; the first query establishes it.
func NewStore(cfg *Config) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return &Store{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureSchema creates the ledger table if it does not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS voyage_estimates (
			estimate_id      UUID,
			created_at       DateTime64(3, 'UTC'),
			vessel_name      String,
			vessel_type      LowCardinality(String),
			arrival_port     LowCardinality(String),
			port_zone        LowCardinality(String),
			eta              DateTime64(3, 'UTC'),
			contract_profile String,
			mandatory_total  Decimal(18, 2),
			optional_low     Decimal(18, 2),
			optional_high    Decimal(18, 2),
			confidence       Float64,
			fee_codes        Array(String),
			is_weekend       UInt8,
			is_holiday       UInt8,
			payload_hash     String,
			payload          String
		) ENGINE = MergeTree()
		ORDER BY (arrival_port, created_at)
	`
	if err := s.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create voyage_estimates: %w", err)
	}
	return nil
}

// =============================================================================
// ESTIMATE OPERATIONS
// =============================================================================

const insertEstimate = `
	INSERT INTO voyage_estimates (
		estimate_id, created_at, vessel_name, vessel_type, arrival_port, port_zone,
		eta, contract_profile, mandatory_total, optional_low, optional_high,
		confidence, fee_codes, is_weekend, is_holiday, payload_hash, payload
	)`

func (r *EstimateRecord) values() []any {
	return []any{
		r.EstimateID, r.CreatedAt, r.VesselName, r.VesselType, r.ArrivalPort, r.PortZone,
		r.ETA, r.ContractProfile, r.MandatoryTotal, r.OptionalLow, r.OptionalHigh,
		r.Confidence, r.FeeCodes, boolToUInt8(r.IsWeekend), boolToUInt8(r.IsHoliday), r.PayloadHash, r.Payload,
	}
}

// RecordEstimate appends one estimate
func (s *Store) RecordEstimate(ctx context.Context, rec *EstimateRecord) error {
	if rec.EstimateID == uuid.Nil {
		rec.EstimateID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	query := insertEstimate + ` VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if err := s.conn.Exec(ctx, query, rec.values()...); err != nil {
		return fmt.Errorf("failed to record estimate: %w", err)
	}
	return nil
}

// RecordEstimates inserts multiple estimates using batch insert
func (s *Store) RecordEstimates(ctx context.Context, recs []*EstimateRecord) error {
	if len(recs) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, insertEstimate)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	now := time.Now().UTC()
	for _, rec := range recs {
		if rec.EstimateID == uuid.Nil {
			rec.EstimateID = uuid.New()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		if err := batch.Append(rec.values()...); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

const selectEstimate = `
	SELECT estimate_id, created_at, vessel_name, vessel_type, arrival_port, port_zone,
		   eta, contract_profile, mandatory_total, optional_low, optional_high,
		   confidence, fee_codes, is_weekend, is_holiday, payload_hash, payload
	FROM voyage_estimates`

type scanner interface {
	Scan(dest ...any) error
}

func scanEstimate(row scanner) (*EstimateRecord, error) {
	var rec EstimateRecord
	var weekend, holiday uint8
	if err := row.Scan(
		&rec.EstimateID, &rec.CreatedAt, &rec.VesselName, &rec.VesselType, &rec.ArrivalPort, &rec.PortZone,
		&rec.ETA, &rec.ContractProfile, &rec.MandatoryTotal, &rec.OptionalLow, &rec.OptionalHigh,
		&rec.Confidence, &rec.FeeCodes, &weekend, &holiday, &rec.PayloadHash, &rec.Payload,
	); err != nil {
		return nil, err
	}
	rec.IsWeekend = weekend == 1
	rec.IsHoliday = holiday == 1
	return &rec, nil
}

// GetEstimate retrieves an estimate by ID
func (s *Store) GetEstimate(ctx context.Context, id uuid.UUID) (*EstimateRecord, error) {
	row := s.conn.QueryRow(ctx, selectEstimate+` WHERE estimate_id = ? LIMIT 1`, id)
	rec, err := scanEstimate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get estimate: %w", err)
	}
	return rec, nil
}

// ListEstimates lists the newest estimates, optionally for one arrival port
func (s *Store) ListEstimates(ctx context.Context, port string, limit int) ([]*EstimateRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := selectEstimate
	args := []any{}
	if port = strings.ToUpper(strings.TrimSpace(port)); port != "" {
		query += ` WHERE arrival_port = ?`
		args = append(args, port)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list estimates: %w", err)
	}
	defer rows.Close()

	var recs []*EstimateRecord
	for rows.Next() {
		rec, err := scanEstimate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan estimate: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// RecordFromReport builds a ledger row from a comprehensive estimate.
func RecordFromReport(r *fees.Report) (*EstimateRecord, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode estimate: %w", err)
	}
	codes := make([]string, 0, len(r.Calculations))
	for _, c := range r.Calculations {
		codes = append(codes, c.Code)
	}
	conf, _ := r.Confidence.Round(4).Float64()
	return &EstimateRecord{
		EstimateID:      r.EstimateID,
		CreatedAt:       r.GeneratedAt,
		VesselName:      r.Vessel.Name,
		VesselType:      string(r.Vessel.Type),
		ArrivalPort:     r.Voyage.ArrivalPort,
		PortZone:        r.PortZone,
		ETA:             r.Voyage.ETA,
		ContractProfile: r.ContractProfile,
		MandatoryTotal:  r.Totals.Mandatory,
		OptionalLow:     r.Totals.OptionalLow,
		OptionalHigh:    r.Totals.OptionalHigh,
		Confidence:      conf,
		FeeCodes:        codes,
		IsWeekend:       r.Voyage.IsWeekend,
		IsHoliday:       r.Voyage.IsHoliday,
		PayloadHash:     hashAmounts(r.Calculations),
		Payload:         string(payload),
	}, nil
}

// hashAmounts fingerprints the priced lines so identical estimates can be grouped.
func hashAmounts(calcs []fees.FeeCalculation) string {
	lines := make([]string, 0, len(calcs))
	for _, c := range calcs {
		lines = append(lines, c.Code+"="+c.FinalAmount.StringFixed(2))
	}
	sort.Strings(lines)

	h := sha256.Sum256([]byte(strings.Join(lines, ";")))
	return hex.EncodeToString(h[:])
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
