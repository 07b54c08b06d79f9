package feestore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SQLStore implements Store and Writer on PostgreSQL or SQLite.
type SQLStore struct {
	db     *sql.DB
	driver string
	logger zerolog.Logger
}

// Open connects to the database named by driver and dsn.
func Open(ctx context.Context, driver, dsn string, logger zerolog.Logger) (*SQLStore, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// in-memory databases are per-connection
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}
	return NewSQLStore(db, driver, logger), nil
}

// NewSQLStore wraps an existing handle.
func NewSQLStore(db *sql.DB, driver string, logger zerolog.Logger) *SQLStore {
	return &SQLStore{db: db, driver: driver, logger: logger.With().Str("component", "feestore").Logger()}
}

// DB exposes the underlying handle.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *SQLStore) Close() error { return s.db.Close() }

// Ping checks connectivity.
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) setupGoose() error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	dialect := "postgres"
	if s.driver == DriverSQLite {
		dialect = "sqlite3"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	return nil
}

// MigrationVersion reports the applied schema version.
func (s *SQLStore) MigrationVersion(ctx context.Context) (int64, error) {
	if err := s.setupGoose(); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersionContext(ctx, s.db)
	if err != nil {
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, nil
}

// Migrate applies the embedded schema and seed migrations.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if err := s.setupGoose(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, s.db)
	if err == nil {
		s.logger.Info().Int64("version", version).Msg("Migrations applied")
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ===== PORTS =====

// GetPort returns the port for code or ErrPortNotFound.
func (s *SQLStore) GetPort(ctx context.Context, code string) (*Port, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT code, name, state, country, region, zone_code, is_california, is_cascadia
		FROM ports WHERE code = ?`), code)
	p, err := scanPort(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPortNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load port %s: %w", code, err)
	}
	return p, nil
}

// ListPorts returns every port ordered by code.
func (s *SQLStore) ListPorts(ctx context.Context) ([]*Port, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, state, country, region, zone_code, is_california, is_cascadia
		FROM ports ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}
	defer rows.Close()
	var out []*Port
	for rows.Next() {
		p, err := scanPort(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan port: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPort(r rowScanner) (*Port, error) {
	var (
		p                     Port
		state, region, zoneCd sql.NullString
	)
	if err := r.Scan(&p.Code, &p.Name, &state, &p.Country, &region, &zoneCd, &p.IsCalifornia, &p.IsCascadia); err != nil {
		return nil, err
	}
	p.State, p.Region, p.ZoneCode = state.String, region.String, zoneCd.String
	return &p, nil
}

// SavePort inserts or replaces a port.
func (s *SQLStore) SavePort(ctx context.Context, p *Port) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO ports (code, name, state, country, region, zone_code, is_california, is_cascadia)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET
			name = excluded.name, state = excluded.state, country = excluded.country,
			region = excluded.region, zone_code = excluded.zone_code,
			is_california = excluded.is_california, is_cascadia = excluded.is_cascadia`),
		p.Code, p.Name, nullString(p.State), countryOr(p.Country), nullString(p.Region), nullString(p.ZoneCode),
		p.IsCalifornia, p.IsCascadia)
	if err != nil {
		return fmt.Errorf("failed to save port %s: %w", p.Code, err)
	}
	return nil
}

// GetZone returns the zone for code, or nil when unknown.
func (s *SQLStore) GetZone(ctx context.Context, code string) (*Zone, error) {
	var (
		z             Zone
		region, state sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT code, name, region, primary_state, country
		FROM port_zones WHERE code = ?`), code).
		Scan(&z.Code, &z.Name, &region, &state, &z.Country)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load zone %s: %w", code, err)
	}
	z.Region, z.PrimaryState = region.String, state.String
	return &z, nil
}

// SaveZone inserts or replaces a zone.
func (s *SQLStore) SaveZone(ctx context.Context, z *Zone) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO port_zones (code, name, region, primary_state, country)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET
			name = excluded.name, region = excluded.region,
			primary_state = excluded.primary_state, country = excluded.country`),
		z.Code, z.Name, nullString(z.Region), nullString(z.PrimaryState), countryOr(z.Country))
	if err != nil {
		return fmt.Errorf("failed to save zone %s: %w", z.Code, err)
	}
	return nil
}

// ===== TERMINALS & DOCUMENTS =====

// ListTerminals returns every terminal ordered by name.
func (s *SQLStore) ListTerminals(ctx context.Context) ([]*Terminal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, port_code, name, operator_name, is_public, notes
		FROM terminals ORDER BY name, code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list terminals: %w", err)
	}
	defer rows.Close()
	var out []*Terminal
	for rows.Next() {
		var (
			t               Terminal
			operator, notes sql.NullString
		)
		if err := rows.Scan(&t.Code, &t.PortCode, &t.Name, &operator, &t.IsPublic, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan terminal: %w", err)
		}
		t.OperatorName, t.Notes = operator.String, notes.String
		out = append(out, &t)
	}
	return out, rows.Err()
}

// SaveTerminal inserts or replaces a terminal.
func (s *SQLStore) SaveTerminal(ctx context.Context, t *Terminal) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO terminals (code, port_code, name, operator_name, is_public, notes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET
			port_code = excluded.port_code, name = excluded.name,
			operator_name = excluded.operator_name, is_public = excluded.is_public, notes = excluded.notes`),
		t.Code, t.PortCode, t.Name, nullString(t.OperatorName), t.IsPublic, nullString(t.Notes))
	if err != nil {
		return fmt.Errorf("failed to save terminal %s: %w", t.Code, err)
	}
	return nil
}

// FindPortDocuments returns the documents scoped to any of codes, ordered by
// document name. Callers include AllUSDocuments themselves.
func (s *SQLStore) FindPortDocuments(ctx context.Context, codes []string) ([]*PortDocument, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	args := make([]any, len(codes))
	for i, c := range codes {
		args[i] = c
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(codes)), ", ")
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, port_code, document_name, document_code, is_mandatory, lead_time_hours,
		       authority, description, applies_to_vessel_types, applies_if_foreign
		FROM port_documents WHERE port_code IN (`+placeholders+`)
		ORDER BY document_name, id`), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query port documents: %w", err)
	}
	defer rows.Close()
	var out []*PortDocument
	for rows.Next() {
		var (
			d                                     PortDocument
			docCode, authority, desc, vesselTypes sql.NullString
		)
		err := rows.Scan(&d.ID, &d.PortCode, &d.DocumentName, &docCode, &d.IsMandatory, &d.LeadTimeHours,
			&authority, &desc, &vesselTypes, &d.AppliesIfForeign)
		if err != nil {
			return nil, fmt.Errorf("failed to scan port document: %w", err)
		}
		d.DocumentCode, d.Authority, d.Description = docCode.String, authority.String, desc.String
		d.VesselTypes = splitVesselTypes(vesselTypes.String)
		out = append(out, &d)
	}
	return out, rows.Err()
}

// SavePortDocument inserts a document row, assigning an ID when empty.
func (s *SQLStore) SavePortDocument(ctx context.Context, d *PortDocument) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO port_documents (id, port_code, document_name, document_code, is_mandatory, lead_time_hours,
		                            authority, description, applies_to_vessel_types, applies_if_foreign)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		d.ID, d.PortCode, d.DocumentName, nullString(d.DocumentCode), d.IsMandatory, d.LeadTimeHours,
		nullString(d.Authority), nullString(d.Description), nullString(strings.Join(d.VesselTypes, ",")), d.AppliesIfForeign)
	if err != nil {
		return fmt.Errorf("failed to save port document %s: %w", d.DocumentName, err)
	}
	return nil
}

// ===== FEES =====

// FindActiveFee returns the row for code active on the given day within the
// port's scope, or nil when none matches.
func (s *SQLStore) FindActiveFee(ctx context.Context, code string, on time.Time, port *Port) (*Fee, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, code, name, scope, unit, rate, currency, cap_amount, cap_period,
		       applies_state, applies_port_code, applies_cascadia,
		       effective_start, effective_end, source_url
		FROM fees WHERE code = ?
		ORDER BY effective_start DESC`), code)
	if err != nil {
		return nil, fmt.Errorf("failed to query fee %s: %w", code, err)
	}
	defer rows.Close()

	var candidates []*Fee
	for rows.Next() {
		f, err := scanFee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fee %s: %w", code, err)
		}
		candidates = append(candidates, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fee %s: %w", code, err)
	}
	return selectActiveFee(candidates, on, port), nil
}

func scanFee(r rowScanner) (*Fee, error) {
	var (
		f                                  Fee
		capPeriod, state, portCode, source sql.NullString
		cascadia                           sql.NullBool
		start, end                         dateValue
	)
	err := r.Scan(&f.ID, &f.Code, &f.Name, &f.Scope, &f.Unit, &f.Rate, &f.Currency, &f.CapAmount, &capPeriod,
		&state, &portCode, &cascadia, &start, &end, &source)
	if err != nil {
		return nil, err
	}
	f.CapPeriod = ParseCapPeriod(capPeriod.String)
	f.AppliesState, f.AppliesPortCode, f.SourceURL = state.String, portCode.String, source.String
	if cascadia.Valid {
		v := cascadia.Bool
		f.AppliesCascadia = &v
	}
	f.EffectiveStart = start.Time
	f.EffectiveEnd = end.ptr()
	return &f, nil
}

// SaveFee inserts a fee row, assigning an ID when empty.
func (s *SQLStore) SaveFee(ctx context.Context, f *Fee) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	var cascadia any
	if f.AppliesCascadia != nil {
		cascadia = *f.AppliesCascadia
	}
	var capAmount any
	if f.CapAmount.Valid {
		capAmount = f.CapAmount.Decimal.String()
	}
	start := Day(f.EffectiveStart)
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO fees (id, code, name, scope, unit, rate, currency, cap_amount, cap_period,
		                  applies_state, applies_port_code, applies_cascadia,
		                  effective_start, effective_end, source_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		f.ID, f.Code, f.Name, orDefault(f.Scope, "federal"), orDefault(f.Unit, "per_call"), f.Rate.String(),
		orDefault(f.Currency, "USD"), capAmount, nullString(string(f.CapPeriod)),
		nullString(f.AppliesState), nullString(f.AppliesPortCode), cascadia,
		dateParam(&start), dateParam(f.EffectiveEnd), nullString(f.SourceURL))
	if err != nil {
		return fmt.Errorf("failed to save fee %s: %w", f.Code, err)
	}
	return nil
}

// ===== CONTRACT ADJUSTMENTS =====

// FindContractAdjustment returns the adjustment for profile and fee code on
// the given day, preferring a port-specific row.
func (s *SQLStore) FindContractAdjustment(ctx context.Context, profile, feeCode string, on time.Time, portCode string) (*ContractAdjustment, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, profile, fee_code, port_code, multiplier, fixed_offset,
		       effective_start, effective_end, notes
		FROM contract_adjustments WHERE profile = ? AND fee_code = ?`), profile, feeCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query contract adjustment %s/%s: %w", profile, feeCode, err)
	}
	defer rows.Close()

	var candidates []*ContractAdjustment
	for rows.Next() {
		var (
			c           ContractAdjustment
			port, notes sql.NullString
			start, end  dateValue
		)
		if err := rows.Scan(&c.ID, &c.Profile, &c.FeeCode, &port, &c.Multiplier, &c.FixedOffset, &start, &end, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan contract adjustment: %w", err)
		}
		c.PortCode, c.Notes = port.String, notes.String
		c.EffectiveStart, c.EffectiveEnd = start.Time, end.ptr()
		candidates = append(candidates, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return selectAdjustment(candidates, on, portCode), nil
}

// SaveContractAdjustment inserts an adjustment row.
func (s *SQLStore) SaveContractAdjustment(ctx context.Context, c *ContractAdjustment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	var offset any
	if c.FixedOffset.Valid {
		offset = c.FixedOffset.Decimal.String()
	}
	multiplier := c.Multiplier
	if multiplier.IsZero() {
		multiplier = decimal.NewFromInt(1)
	}
	start := Day(c.EffectiveStart)
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO contract_adjustments (id, profile, fee_code, port_code, multiplier, fixed_offset,
		                                  effective_start, effective_end, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.Profile, c.FeeCode, nullString(c.PortCode), multiplier.String(), offset,
		dateParam(&start), dateParam(c.EffectiveEnd), nullString(c.Notes))
	if err != nil {
		return fmt.Errorf("failed to save contract adjustment %s/%s: %w", c.Profile, c.FeeCode, err)
	}
	return nil
}

// ===== VESSEL TYPES =====

// GetVesselTypeConfig returns the tug configuration for a vessel type, or nil.
func (s *SQLStore) GetVesselTypeConfig(ctx context.Context, vesselType string) (*VesselTypeConfig, error) {
	var v VesselTypeConfig
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT vessel_type, base_tugs, tug_grt_step, max_tugs
		FROM vessel_type_configs WHERE vessel_type = ?`), strings.ToLower(vesselType)).
		Scan(&v.VesselType, &v.BaseTugs, &v.TugGRTStep, &v.MaxTugs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vessel type %s: %w", vesselType, err)
	}
	return &v, nil
}

// SaveVesselTypeConfig inserts or replaces a vessel type config.
func (s *SQLStore) SaveVesselTypeConfig(ctx context.Context, v *VesselTypeConfig) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO vessel_type_configs (vessel_type, base_tugs, tug_grt_step, max_tugs)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (vessel_type) DO UPDATE SET
			base_tugs = excluded.base_tugs, tug_grt_step = excluded.tug_grt_step, max_tugs = excluded.max_tugs`),
		strings.ToLower(v.VesselType), v.BaseTugs, v.TugGRTStep.String(), v.MaxTugs)
	if err != nil {
		return fmt.Errorf("failed to save vessel type %s: %w", v.VesselType, err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func countryOr(c string) string { return orDefault(c, "US") }
