package live

import "strings"

// Provider is a pilotage or marine-exchange organisation with a public page.
type Provider struct {
	Key        string `json:"key"`
	Name       string `json:"provider"`
	URL        string `json:"url"`
	VHFChannel string `json:"vhf_channel,omitempty"`
	Boarding   string `json:"boarding_grounds,omitempty"`
}

// Regions returned by ChooseRegion.
const (
	RegionBayArea  = "bay_area"
	RegionSoCal    = "socal"
	RegionPuget    = "puget"
	RegionColumbia = "columbia"
)

// DefaultProviders is the built-in provider registry.
var DefaultProviders = map[string]Provider{
	"sf_pilots":      {Key: "sf_pilots", Name: "San Francisco Bar Pilots", URL: "https://sfbarpilots.com/new-operational/", VHFChannel: "10", Boarding: "SF Pilot Station"},
	"sf_mx":          {Key: "sf_mx", Name: "San Francisco Marine Exchange", URL: "https://www.sfmx.org/bay-area-committees/hsc/"},
	"la_pilot":       {Key: "la_pilot", Name: "Los Angeles Pilot Service", URL: "https://www.portoflosangeles.org/business/pilot-service", VHFChannel: "73", Boarding: "LA/LB Pilot Station"},
	"lb_pilot":       {Key: "lb_pilot", Name: "Jacobsen Pilot Service", URL: "https://www.jacobsenpilot.com/pilotage/", VHFChannel: "73", Boarding: "LA/LB Pilot Station"},
	"socal_mx":       {Key: "socal_mx", Name: "Marine Exchange of Southern California", URL: "https://mxsocal.org/"},
	"ps_pilots":      {Key: "ps_pilots", Name: "Puget Sound Pilots", URL: "https://www.pspilots.org/dispatch-information/general-guidelines-for-vessels/", VHFChannel: "13", Boarding: "Port Angeles Pilot Station"},
	"ps_mx":          {Key: "ps_mx", Name: "Marine Exchange of Puget Sound", URL: "https://marexps.com/"},
	"cr_pilots":      {Key: "cr_pilots", Name: "Columbia River Pilots", URL: "https://colrip.com/", VHFChannel: "16/13", Boarding: "Astoria Pilot Station"},
	"cr_mx":          {Key: "cr_mx", Name: "Columbia River Marine Exchange", URL: "https://www.pdxmex.com/resources/"},
	"oak_pilot":      {Key: "oak_pilot", Name: "San Francisco Bar Pilots (Oakland)", URL: "https://sfbarpilots.com/new-operational/", VHFChannel: "10"},
	"stockton_pilot": {Key: "stockton_pilot", Name: "San Francisco Bar Pilots (Stockton)", URL: "https://sfbarpilots.com/new-operational/", VHFChannel: "10"},
	"sd_pilot":       {Key: "sd_pilot", Name: "San Diego Harbor Pilots", URL: "https://www.sdmaritime.com/pilotage/", VHFChannel: "14"},
}

var regionPilots = map[string][]string{
	RegionBayArea:  {"sf_pilots", "oak_pilot", "stockton_pilot"},
	RegionSoCal:    {"la_pilot", "lb_pilot", "sd_pilot"},
	RegionPuget:    {"ps_pilots"},
	RegionColumbia: {"cr_pilots"},
}

var regionExchange = map[string]string{
	RegionBayArea:  "sf_mx",
	RegionSoCal:    "socal_mx",
	RegionPuget:    "ps_mx",
	RegionColumbia: "cr_mx",
}

var portRegions = map[string]string{
	"LALB":   RegionSoCal,
	"USLAX":  RegionSoCal,
	"USLGB":  RegionSoCal,
	"USSAN":  RegionSoCal,
	"SDG":    RegionSoCal,
	"SFBAY":  RegionBayArea,
	"USSFO":  RegionBayArea,
	"USOAK":  RegionBayArea,
	"OAK":    RegionBayArea,
	"STKN":   RegionBayArea,
	"HUM":    RegionBayArea,
	"PUGET":  RegionPuget,
	"USSEA":  RegionPuget,
	"USTAC":  RegionPuget,
	"EVR":    RegionPuget,
	"COLRIV": RegionColumbia,
	"USPDX":  RegionColumbia,
	"GRH":    RegionColumbia,
	"VAN":    RegionColumbia,
}

var regionNames = []struct {
	region string
	names  []string
}{
	{RegionBayArea, []string{"san francisco", "oakland", "richmond", "stockton", "sacramento", "alameda", "redwood"}},
	{RegionSoCal, []string{"los angeles", "long beach", "san diego", "hueneme"}},
	{RegionPuget, []string{"seattle", "tacoma", "everett", "olympia", "bellingham", "anacortes"}},
	{RegionColumbia, []string{"portland", "astoria", "columbia", "vancouver usa", "longview", "kalama"}},
}

// ChooseRegion maps a port onto a provider region: known code, then name
// keywords, then state. Unknown ports land in the bay area.
func ChooseRegion(code, name, state string, isCascadia bool) string {
	if r, ok := portRegions[strings.ToUpper(code)]; ok {
		return r
	}
	lower := strings.ToLower(name)
	for _, rn := range regionNames {
		for _, n := range rn.names {
			if strings.Contains(lower, n) {
				return rn.region
			}
		}
	}
	switch st := strings.ToUpper(state); {
	case st == "CA":
		return RegionBayArea
	case st == "WA" || isCascadia:
		return RegionPuget
	case st == "OR":
		return RegionColumbia
	}
	return RegionBayArea
}
