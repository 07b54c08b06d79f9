// Package live provides best-effort advisory fetches of public fee and
// provider pages. Every call degrades to empty data on failure.
package live

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"portcall-cost/pkg/platform"
)

// Default endpoints.
const (
	DefaultAPHISURL = "https://www.aphis.usda.gov/aphis/resources/import-export/aqi-user-fees"
	DefaultTimeout  = 4 * time.Second
	DefaultTTL      = 15 * time.Minute

	failureTTL   = time.Minute
	sampleLength = 1500
	maxPDFLinks  = 5
	maxAmounts   = 6
)

// DefaultMISPURLs lists the California program pages; the last one is scanned for amounts.
var DefaultMISPURLs = []string{
	"https://www.slc.ca.gov/misp/",
	"https://cdtfa.ca.gov/taxes-and-fees/marine-invasive-species-fee/",
}

var (
	moneyRe     = regexp.MustCompile(`\$[\d,]+(?:\.\d{2})?`)
	perVoyageRe = regexp.MustCompile(`(?i)\$\s?([\d,]+(?:\.\d{2})?)\s+per\s+(?:qualifying\s+)?voyage`)
	standardRe  = regexp.MustCompile(`(?i)commercial\s+vessels?[^$]{0,120}?\$\s?([\d,]+\.\d{2})`)
	cascadiaRe  = regexp.MustCompile(`(?i)(?:great\s+lakes|cascadia)[^$]{0,160}?\$\s?([\d,]+\.\d{2})`)
	vhfRe       = regexp.MustCompile(`(?i)VHF.*?Channels?\s*(\d+[A-B]?)`)
	draftRe     = regexp.MustCompile(`(?i)(?:maximum|max).*?draft.*?(\d+\.?\d*)\s*(?:feet|ft|meters|m)\b`)
	advanceRe   = regexp.MustCompile(`(?i)(\d+)\s*(?:hours?|hrs?).*?advance.*?notice`)
)

// PageSnapshot is the lightly parsed content of one page.
type PageSnapshot struct {
	URL                string    `json:"url"`
	Title              string    `json:"title,omitempty"`
	TextSample         string    `json:"text_sample,omitempty"`
	FetchedAt          time.Time `json:"fetched_at"`
	VHFChannel         string    `json:"vhf_channel,omitempty"`
	MaxDraft           string    `json:"max_draft,omitempty"`
	AdvanceNoticeHours string    `json:"advance_notice_hours,omitempty"`
	PDFLinks           []string  `json:"pdf_links,omitempty"`
	Error              string    `json:"error,omitempty"`

	text string
}

// OK reports whether the page was fetched and parsed.
func (p PageSnapshot) OK() bool { return p.Error == "" }

// APHISFees holds fee values read from the APHIS schedule page.
type APHISFees struct {
	StandardFee decimal.NullDecimal `json:"standard_fee"`
	CascadiaFee decimal.NullDecimal `json:"cascadia_fee"`
	Source      string              `json:"source,omitempty"`
}

// MISPSnapshot summarises the California MISP pages.
type MISPSnapshot struct {
	Program             string              `json:"program"`
	CurrentFee          decimal.NullDecimal `json:"current_fee"`
	CurrentFeeText      string              `json:"current_fee_text"`
	Exemptions          []string            `json:"exemptions"`
	Pages               []PageSnapshot      `json:"pages"`
	PossibleAmountsSeen []string            `json:"possible_amounts_seen"`
}

// ProviderSnapshot is a provider with its fetched page.
type ProviderSnapshot struct {
	Provider
	Page PageSnapshot `json:"page"`
}

// MXSnapshot is the marine exchange for a region.
type MXSnapshot struct {
	Primary *ProviderSnapshot `json:"primary,omitempty"`
}

// Config configures a Client.
type Config struct {
	Timeout   time.Duration
	TTL       time.Duration
	APHISURL  string
	MISPURLs  []string
	Providers map[string]Provider
}

// Client fetches advisory pages with a TTL cache.
type Client struct {
	http      *platform.HTTPClient
	cache     *pageCache
	ttl       time.Duration
	timeout   time.Duration
	aphisURL  string
	mispURLs  []string
	providers map[string]Provider
	logger    zerolog.Logger
}

// NewClient creates a client; zero config values take the defaults.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.APHISURL == "" {
		cfg.APHISURL = DefaultAPHISURL
	}
	if len(cfg.MISPURLs) == 0 {
		cfg.MISPURLs = DefaultMISPURLs
	}
	if cfg.Providers == nil {
		cfg.Providers = DefaultProviders
	}
	logger = logger.With().Str("component", "live").Logger()
	return &Client{
		http:      platform.NewHTTPClient(1, cfg.Timeout, logger),
		cache:     newPageCache(cfg.TTL),
		ttl:       cfg.TTL,
		timeout:   cfg.Timeout,
		aphisURL:  cfg.APHISURL,
		mispURLs:  cfg.MISPURLs,
		providers: cfg.Providers,
		logger:    logger,
	}
}

// FetchPage returns a cached or freshly fetched snapshot of pageURL.
// Failures are reported in the snapshot's Error field and cached briefly.
func (c *Client) FetchPage(ctx context.Context, pageURL string, parseExtra bool) PageSnapshot {
	key := pageURL
	if parseExtra {
		key = "extra::" + pageURL
	}
	if snap, ok := c.cache.get(key); ok {
		return snap
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.http.GetBody(ctx, pageURL)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", pageURL).Msg("Advisory fetch failed")
		snap := PageSnapshot{URL: pageURL, FetchedAt: time.Now().UTC(), Error: err.Error()}
		c.cache.set(key, snap, failureTTL)
		return snap
	}

	snap := parsePage(pageURL, body, parseExtra)
	if !snap.OK() {
		c.logger.Warn().Str("url", pageURL).Str("error", snap.Error).Msg("Advisory parse failed")
	}
	c.cache.set(key, snap, c.ttl)
	return snap
}

func parsePage(pageURL string, body []byte, parseExtra bool) PageSnapshot {
	snap := PageSnapshot{URL: pageURL, FetchedAt: time.Now().UTC()}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		snap.Title = "Parse error"
		snap.Error = "HTML parsing failed"
		snap.TextSample = truncate(string(body), 500)
		return snap
	}

	snap.Title = strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, noscript").Remove()
	snap.text = strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	snap.TextSample = truncate(snap.text, sampleLength)

	if !parseExtra {
		return snap
	}
	if m := vhfRe.FindStringSubmatch(snap.text); m != nil {
		snap.VHFChannel = m[1]
	}
	if m := draftRe.FindStringSubmatch(snap.text); m != nil {
		snap.MaxDraft = m[1]
	}
	if m := advanceRe.FindStringSubmatch(snap.text); m != nil {
		snap.AdvanceNoticeHours = m[1]
	}
	base, _ := url.Parse(pageURL)
	doc.Find(`a[href*=".pdf"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if ref, err := url.Parse(href); err == nil && base != nil {
			href = base.ResolveReference(ref).String()
		}
		snap.PDFLinks = append(snap.PDFLinks, href)
		return len(snap.PDFLinks) < maxPDFLinks
	})
	return snap
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

// ===== FEE SOURCES =====

// FetchAPHISVesselFees reads the commercial-vessel and reduced-region fees.
func (c *Client) FetchAPHISVesselFees(ctx context.Context) APHISFees {
	snap := c.FetchPage(ctx, c.aphisURL, false)
	fees := APHISFees{Source: c.aphisURL}
	if !snap.OK() {
		return fees
	}
	text := snap.text
	if text == "" {
		text = snap.TextSample
	}
	if m := standardRe.FindStringSubmatch(text); m != nil {
		fees.StandardFee = parseAmount(m[1])
	}
	if m := cascadiaRe.FindStringSubmatch(text); m != nil {
		fees.CascadiaFee = parseAmount(m[1])
	}
	return fees
}

// FetchMISPSnapshot reads the California MISP pages.
func (c *Client) FetchMISPSnapshot(ctx context.Context) MISPSnapshot {
	out := MISPSnapshot{
		Program:             "California Marine Invasive Species Program (MISP)",
		CurrentFeeText:      "$1000 per voyage (300+ GT vessels)",
		Exemptions:          []string{"Military", "Law enforcement", "Research vessels"},
		PossibleAmountsSeen: []string{},
	}
	for _, u := range c.mispURLs {
		snap := c.FetchPage(ctx, u, false)
		out.Pages = append(out.Pages, snap)
		if !out.CurrentFee.Valid && snap.OK() {
			if m := perVoyageRe.FindStringSubmatch(snap.text); m != nil {
				out.CurrentFee = parseAmount(m[1])
			}
		}
	}
	if n := len(out.Pages); n > 1 && out.Pages[n-1].OK() {
		seen := map[string]bool{}
		for _, amt := range moneyRe.FindAllString(out.Pages[n-1].TextSample, -1) {
			if seen[amt] {
				continue
			}
			seen[amt] = true
			out.PossibleAmountsSeen = append(out.PossibleAmountsSeen, amt)
			if len(out.PossibleAmountsSeen) == maxAmounts {
				break
			}
		}
	}
	return out
}

// ===== PROVIDERS =====

// MXSnapshotForRegion returns the marine exchange for region, or an empty snapshot.
func (c *Client) MXSnapshotForRegion(ctx context.Context, region string) MXSnapshot {
	key, ok := regionExchange[region]
	if !ok {
		return MXSnapshot{}
	}
	p, ok := c.providers[key]
	if !ok {
		return MXSnapshot{}
	}
	return MXSnapshot{Primary: &ProviderSnapshot{Provider: p, Page: c.FetchPage(ctx, p.URL, true)}}
}

// PilotSnapshotForRegion returns every pilot association serving region.
func (c *Client) PilotSnapshotForRegion(ctx context.Context, region string) map[string]ProviderSnapshot {
	out := map[string]ProviderSnapshot{}
	for _, key := range regionPilots[region] {
		p, ok := c.providers[key]
		if !ok {
			continue
		}
		out[key] = ProviderSnapshot{Provider: p, Page: c.FetchPage(ctx, p.URL, true)}
	}
	return out
}

// Refresh drops the cache and refetches every known page.
func (c *Client) Refresh(ctx context.Context) {
	c.cache.clear()
	c.FetchAPHISVesselFees(ctx)
	c.FetchMISPSnapshot(ctx)
	for region := range regionExchange {
		c.MXSnapshotForRegion(ctx, region)
	}
	stats := c.cache.stats()
	c.logger.Info().Int("entries", stats.Total).Int("active", stats.Active).Msg("Advisory cache refreshed")
}

// ClearCache drops every cached page.
func (c *Client) ClearCache() { c.cache.clear() }

// CacheStats reports cache occupancy.
func (c *Client) CacheStats() CacheStats { return c.cache.stats() }

func parseAmount(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
