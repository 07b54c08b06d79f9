package portinfo

import (
	"context"
	"strings"

	"portcall-cost/db/feestore"
	"portcall-cost/decision/fees"
	perrors "portcall-cost/pkg/errors"
)

// DocumentRequirement is one filing due before arrival.
type DocumentRequirement struct {
	DocumentName  string `json:"document_name"`
	DocumentCode  string `json:"document_code"`
	IsMandatory   bool   `json:"is_mandatory"`
	LeadTimeHours int    `json:"lead_time_hours"`
	Authority     string `json:"authority"`
	Description   string `json:"description,omitempty"`
}

// foreignArrivalDeclaration is due on every arrival from a foreign port.
var foreignArrivalDeclaration = DocumentRequirement{
	DocumentName:  "Customs Declaration for Foreign Arrival",
	DocumentCode:  "CBP-1300",
	IsMandatory:   true,
	LeadTimeHours: 24,
	Authority:     "CBP",
	Description:   "Required for all arrivals from foreign ports.",
}

// DocumentRequirements lists the filings for a call at portCode by a vessel
// of vesselType arriving from previousPort. Documents scoped to every US
// port, the port itself and its zone are merged, filtered by vessel type
// and arrival type, and deduplicated by code and name.
func (d *Directory) DocumentRequirements(ctx context.Context, portCode, vesselType, previousPort string) ([]DocumentRequirement, error) {
	code := strings.ToUpper(strings.TrimSpace(portCode))
	if code == "" {
		return nil, perrors.NewInvalidInputError("port_code", "port code is required")
	}
	foreign := fees.InferArrivalType(previousPort, "") == fees.ArrivalForeign

	codes := []string{feestore.AllUSDocuments, code}
	resolved, err := d.Resolve(ctx, code)
	switch {
	case err == nil:
		codes = appendUnique(codes, strings.ToUpper(resolved.PortCode), strings.ToUpper(resolved.ZoneCode))
	case perrors.CodeOf(err) == perrors.ErrCodeUnknownPort:
		// documents may still be keyed by the raw code
		d.logger.Debug().Str("port", code).Msg("Port not in catalog; using raw code for documents")
	default:
		return nil, err
	}

	rows, err := d.catalog.FindPortDocuments(ctx, codes)
	if err != nil {
		return nil, perrors.NewStoreError("find port documents", err)
	}

	type docKey struct{ code, name string }
	seen := make(map[docKey]bool)
	seenCodes := make(map[string]bool)
	out := []DocumentRequirement{}
	for _, row := range rows {
		if !row.AppliesTo(vesselType) || (row.AppliesIfForeign && !foreign) {
			continue
		}
		key := docKey{strings.ToUpper(row.DocumentCode), strings.ToLower(row.DocumentName)}
		if seen[key] {
			continue
		}
		seen[key] = true
		seenCodes[key.code] = true
		out = append(out, DocumentRequirement{
			DocumentName:  row.DocumentName,
			DocumentCode:  row.DocumentCode,
			IsMandatory:   row.IsMandatory,
			LeadTimeHours: row.LeadTimeHours,
			Authority:     row.Authority,
			Description:   row.Description,
		})
	}
	if foreign && !seenCodes[foreignArrivalDeclaration.DocumentCode] {
		out = append(out, foreignArrivalDeclaration)
	}
	return out, nil
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		dup := v == ""
		for _, have := range list {
			if have == v {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, v)
		}
	}
	return list
}
