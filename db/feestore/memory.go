package feestore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store and Writer.
type MemoryStore struct {
	mu          sync.RWMutex
	ports       map[string]*Port
	fees        map[string][]*Fee
	adjustments map[adjustmentKey][]*ContractAdjustment
	vesselTypes map[string]*VesselTypeConfig
	zones       map[string]*Zone
	terminals   map[string]*Terminal
	documents   []*PortDocument
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ports:       make(map[string]*Port),
		fees:        make(map[string][]*Fee),
		adjustments: make(map[adjustmentKey][]*ContractAdjustment),
		vesselTypes: make(map[string]*VesselTypeConfig),
		zones:       make(map[string]*Zone),
		terminals:   make(map[string]*Terminal),
	}
}

func (m *MemoryStore) GetPort(ctx context.Context, code string) (*Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.ports[code]
	if !ok {
		return nil, ErrPortNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) FindActiveFee(ctx context.Context, code string, on time.Time, port *Port) (*Fee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	f := selectActiveFee(m.fees[code], on, port)
	if f == nil {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (m *MemoryStore) FindContractAdjustment(ctx context.Context, profile, feeCode string, on time.Time, portCode string) (*ContractAdjustment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := selectAdjustment(m.adjustments[adjustmentKey{profile, feeCode}], on, portCode)
	if c == nil {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) GetVesselTypeConfig(ctx context.Context, vesselType string) (*VesselTypeConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vesselTypes[strings.ToLower(vesselType)]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (m *MemoryStore) SavePort(ctx context.Context, p *Port) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	if cp.Country == "" {
		cp.Country = "US"
	}
	m.ports[p.Code] = &cp
	return nil
}

func (m *MemoryStore) SaveFee(ctx context.Context, f *Fee) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	cp.EffectiveStart = Day(cp.EffectiveStart)
	m.fees[f.Code] = append(m.fees[f.Code], &cp)
	return nil
}

func (m *MemoryStore) SaveContractAdjustment(ctx context.Context, c *ContractAdjustment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.EffectiveStart = Day(cp.EffectiveStart)
	key := adjustmentKey{c.Profile, c.FeeCode}
	m.adjustments[key] = append(m.adjustments[key], &cp)
	return nil
}

func (m *MemoryStore) SaveVesselTypeConfig(ctx context.Context, v *VesselTypeConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	m.vesselTypes[strings.ToLower(v.VesselType)] = &cp
	return nil
}

func (m *MemoryStore) ListPorts(ctx context.Context) ([]*Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Port, 0, len(m.ports))
	for _, p := range m.ports {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryStore) GetZone(ctx context.Context, code string) (*Zone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	z, ok := m.zones[code]
	if !ok {
		return nil, nil
	}
	cp := *z
	return &cp, nil
}

func (m *MemoryStore) SaveZone(ctx context.Context, z *Zone) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *z
	if cp.Country == "" {
		cp.Country = "US"
	}
	m.zones[z.Code] = &cp
	return nil
}

func (m *MemoryStore) ListTerminals(ctx context.Context) ([]*Terminal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Terminal, 0, len(m.terminals))
	for _, t := range m.terminals {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (m *MemoryStore) SaveTerminal(ctx context.Context, t *Terminal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.terminals[t.Code] = &cp
	return nil
}

func (m *MemoryStore) FindPortDocuments(ctx context.Context, codes []string) ([]*PortDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*PortDocument
	for _, d := range m.documents {
		if want[d.PortCode] {
			cp := *d
			cp.VesselTypes = append([]string(nil), d.VesselTypes...)
			out = append(out, &cp)
		}
	}
	sortDocuments(out)
	return out, nil
}

func (m *MemoryStore) SavePortDocument(ctx context.Context, d *PortDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	cp.VesselTypes = splitVesselTypes(strings.Join(d.VesselTypes, ","))
	m.documents = append(m.documents, &cp)
	return nil
}

type adjustmentKey struct {
	profile string
	feeCode string
}
