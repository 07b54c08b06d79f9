// Package portinfo resolves caller-supplied port identifiers, searches the
// port catalog and lists the pre-arrival documents a call requires.
package portinfo

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"portcall-cost/db/feestore"
	perrors "portcall-cost/pkg/errors"
)

// Search bounds.
const (
	MinQueryLength     = 2
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// unlocodeAliases maps UN/LOCODEs onto the combined internal ports that
// carry their tariffs when the LOCODE itself is not in the catalog.
var unlocodeAliases = map[string]string{
	"USLAX": "LALB",
	"USLGB": "LALB",
	"USOAK": "SFBAY",
	"USSFO": "SFBAY",
	"USSEA": "PUGET",
	"USTAC": "PUGET",
	"USPDX": "COLRIV",
	"USAST": "COLRIV",
}

// ResolvedPort is a port together with its parent zone. Ports without a
// zone report themselves as the zone.
type ResolvedPort struct {
	ZoneCode string `json:"zone_code"`
	ZoneName string `json:"zone_name,omitempty"`
	PortCode string `json:"port_code"`
	PortName string `json:"port_name,omitempty"`
}

// PortInfo is one search hit.
type PortInfo struct {
	Locode      string `json:"locode"`
	PortName    string `json:"port_name"`
	CountryCode string `json:"country_code"`
	Region      string `json:"region,omitempty"`
	ZoneCode    string `json:"zone_code,omitempty"`
}

// Directory answers port questions from a catalog.
type Directory struct {
	catalog feestore.Catalog
	logger  zerolog.Logger
}

// NewDirectory creates a directory over catalog.
func NewDirectory(catalog feestore.Catalog, logger zerolog.Logger) *Directory {
	return &Directory{catalog: catalog, logger: logger.With().Str("component", "portinfo").Logger()}
}

// snapshot is one consistent read of the catalog.
type snapshot struct {
	ports     []*feestore.Port
	byCode    map[string]*feestore.Port
	terminals []*feestore.Terminal
}

func (d *Directory) load(ctx context.Context, withTerminals bool) (*snapshot, error) {
	ports, err := d.catalog.ListPorts(ctx)
	if err != nil {
		return nil, perrors.NewStoreError("list ports", err)
	}
	snap := &snapshot{ports: ports, byCode: make(map[string]*feestore.Port, len(ports))}
	for _, p := range ports {
		snap.byCode[strings.ToUpper(p.Code)] = p
	}
	if withTerminals {
		if snap.terminals, err = d.catalog.ListTerminals(ctx); err != nil {
			return nil, perrors.NewStoreError("list terminals", err)
		}
	}
	return snap, nil
}

// Resolve maps a zone code, port code, UN/LOCODE, port name or terminal name
// onto a port. Lookups are tried in that order and names match exactly
// before they match by substring.
func (d *Directory) Resolve(ctx context.Context, input string) (*ResolvedPort, error) {
	key := strings.TrimSpace(input)
	if key == "" {
		return nil, perrors.NewInvalidInputError("port_code", "port code is required")
	}
	snap, err := d.load(ctx, true)
	if err != nil {
		return nil, err
	}
	return d.resolve(ctx, snap, key, 0)
}

func (d *Directory) resolve(ctx context.Context, snap *snapshot, key string, depth int) (*ResolvedPort, error) {
	code := strings.ToUpper(key)

	zone, err := d.catalog.GetZone(ctx, code)
	if err != nil {
		return nil, perrors.NewStoreError("get zone", err)
	}
	if zone != nil {
		primary := primaryPort(zone.Code, snap.ports)
		if primary == nil {
			return nil, perrors.NewUnknownPortError(key, errors.New("zone has no ports"))
		}
		return &ResolvedPort{ZoneCode: zone.Code, ZoneName: zone.Name, PortCode: primary.Code, PortName: primary.Name}, nil
	}

	if p, ok := snap.byCode[code]; ok {
		return d.fromPort(ctx, p)
	}
	if alias, ok := unlocodeAliases[code]; ok && depth == 0 {
		return d.resolve(ctx, snap, alias, depth+1)
	}

	if p := matchName(snap.ports, key, func(p *feestore.Port) string { return p.Name }); p != nil {
		return d.fromPort(ctx, p)
	}
	if t := matchName(snap.terminals, key, func(t *feestore.Terminal) string { return t.Name }); t != nil {
		if p, ok := snap.byCode[strings.ToUpper(t.PortCode)]; ok {
			return d.fromPort(ctx, p)
		}
	}
	return nil, perrors.NewUnknownPortError(key, feestore.ErrPortNotFound)
}

func (d *Directory) fromPort(ctx context.Context, p *feestore.Port) (*ResolvedPort, error) {
	out := &ResolvedPort{ZoneCode: p.Code, ZoneName: p.Name, PortCode: p.Code, PortName: p.Name}
	if p.ZoneCode == "" {
		return out, nil
	}
	zone, err := d.catalog.GetZone(ctx, p.ZoneCode)
	if err != nil {
		return nil, perrors.NewStoreError("get zone", err)
	}
	out.ZoneCode = p.ZoneCode
	if zone != nil {
		out.ZoneName = zone.Name
	}
	return out, nil
}

// primaryPort is the zone's namesake port, else the first by name then code.
func primaryPort(zoneCode string, ports []*feestore.Port) *feestore.Port {
	var members []*feestore.Port
	for _, p := range ports {
		if !strings.EqualFold(p.ZoneCode, zoneCode) {
			continue
		}
		if strings.EqualFold(p.Code, zoneCode) {
			return p
		}
		members = append(members, p)
	}
	if len(members) == 0 {
		return nil
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Name != members[j].Name {
			return members[i].Name < members[j].Name
		}
		return members[i].Code < members[j].Code
	})
	return members[0]
}

// matchName returns the item whose name equals key ignoring case, else the
// shortest name containing key, ties broken alphabetically.
func matchName[T any](items []T, key string, name func(T) string) T {
	needle := strings.ToLower(key)
	var best T
	bestName, found := "", false
	for _, it := range items {
		n := strings.ToLower(name(it))
		if n == needle {
			return it
		}
		if !strings.Contains(n, needle) {
			continue
		}
		if !found || len(n) < len(bestName) || (len(n) == len(bestName) && n < bestName) {
			best, bestName, found = it, n, true
		}
	}
	return best
}

// Search finds ports whose name or code contains q. An exact code match
// sorts first, the rest by name. limit 0 means DefaultSearchLimit.
func (d *Directory) Search(ctx context.Context, q, country string, limit int) ([]PortInfo, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < MinQueryLength {
		return nil, perrors.NewInvalidInputError("q", "query must be at least 2 characters")
	}
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	if limit < 1 || limit > MaxSearchLimit {
		return nil, perrors.NewInvalidInputError("limit", "limit must be between 1 and 100")
	}
	snap, err := d.load(ctx, false)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(q)
	upper := strings.ToUpper(q)
	country = strings.ToUpper(strings.TrimSpace(country))
	var hits []*feestore.Port
	for _, p := range snap.ports {
		if country != "" && !strings.EqualFold(p.Country, country) {
			continue
		}
		if strings.Contains(strings.ToLower(p.Name), needle) || strings.Contains(strings.ToLower(p.Code), needle) {
			hits = append(hits, p)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		ei, ej := hits[i].Code == upper, hits[j].Code == upper
		if ei != ej {
			return ei
		}
		return hits[i].Name < hits[j].Name
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]PortInfo, len(hits))
	for i, p := range hits {
		out[i] = PortInfo{Locode: p.Code, PortName: p.Name, CountryCode: p.Country, Region: p.Region, ZoneCode: p.ZoneCode}
	}
	return out, nil
}
