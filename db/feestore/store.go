// Package feestore is the query layer over versioned fee rows, ports,
// contract adjustments, vessel-type tug configuration, terminals and
// pre-arrival documents.
package feestore

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrPortNotFound is returned by GetPort for an unknown code.
var ErrPortNotFound = errors.New("port not found")

// Store is the read contract consumed by the fee engine. Lookups that find
// nothing return (nil, nil) except GetPort, which returns ErrPortNotFound.
type Store interface {
	GetPort(ctx context.Context, code string) (*Port, error)
	FindActiveFee(ctx context.Context, code string, on time.Time, port *Port) (*Fee, error)
	FindContractAdjustment(ctx context.Context, profile, feeCode string, on time.Time, portCode string) (*ContractAdjustment, error)
	GetVesselTypeConfig(ctx context.Context, vesselType string) (*VesselTypeConfig, error)
}

// Writer is implemented by stores that accept reference data.
type Writer interface {
	SavePort(ctx context.Context, p *Port) error
	SaveFee(ctx context.Context, f *Fee) error
	SaveContractAdjustment(ctx context.Context, c *ContractAdjustment) error
	SaveVesselTypeConfig(ctx context.Context, v *VesselTypeConfig) error
	SaveZone(ctx context.Context, z *Zone) error
	SaveTerminal(ctx context.Context, t *Terminal) error
	SavePortDocument(ctx context.Context, d *PortDocument) error
}

// Catalog is the port reference data behind resolution, search and
// document requirements. GetZone returns (nil, nil) for an unknown code.
type Catalog interface {
	ListPorts(ctx context.Context) ([]*Port, error)
	GetZone(ctx context.Context, code string) (*Zone, error)
	ListTerminals(ctx context.Context) ([]*Terminal, error)
	FindPortDocuments(ctx context.Context, codes []string) ([]*PortDocument, error)
}

// selectActiveFee picks the most recently started row that is active on day
// and matches the port scope. Ties on start date go to the larger ID.
func selectActiveFee(rows []*Fee, on time.Time, port *Port) *Fee {
	var best *Fee
	for _, f := range rows {
		if !f.ActiveOn(on) || !f.MatchesPort(port) {
			continue
		}
		if best == nil || f.EffectiveStart.After(best.EffectiveStart) ||
			(f.EffectiveStart.Equal(best.EffectiveStart) && f.ID > best.ID) {
			best = f
		}
	}
	return best
}

// selectAdjustment prefers a port-specific row over a port-agnostic one,
// then the most recent start.
func selectAdjustment(rows []*ContractAdjustment, on time.Time, portCode string) *ContractAdjustment {
	var best *ContractAdjustment
	rank := func(c *ContractAdjustment) int {
		if c.PortCode != "" {
			return 1
		}
		return 0
	}
	for _, c := range rows {
		if !c.ActiveOn(on) {
			continue
		}
		if c.PortCode != "" && c.PortCode != portCode {
			continue
		}
		switch {
		case best == nil,
			rank(c) > rank(best),
			rank(c) == rank(best) && c.EffectiveStart.After(best.EffectiveStart):
			best = c
		}
	}
	return best
}

// sortDocuments orders documents by name, then ID, matching the SQL query.
func sortDocuments(docs []*PortDocument) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].DocumentName != docs[j].DocumentName {
			return docs[i].DocumentName < docs[j].DocumentName
		}
		return docs[i].ID < docs[j].ID
	})
}
