package pilotage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func version(effective string) map[string]any {
	return map[string]any{
		"effective": effective,
		"bar": map[string]any{
			"base_fee": 1000, "per_foot_rate": 5, "draft_multiplier": 1.1,
			"min_total": 3000, "max_total": 15000,
		},
		"bay":        map[string]any{"per_foot_rate": 2, "minimum": 500},
		"river":      map[string]any{"per_foot_rate": 0, "minimum": 0},
		"surcharges": map[string]any{"weekend_multiplier": 1.5, "holiday_multiplier": 2.0, "night_flat": 400},
		"extras":     map[string]any{"transportation": 200},
	}
}

func parse(t *testing.T, doc map[string]any) *Registry {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	reg, err := ParseRegistry(data, "test")
	require.NoError(t, err)
	return reg
}

func TestLoadRatesPicksLatestEffectiveVersion(t *testing.T) {
	newer := version("2024-01-01")
	newer["bar"].(map[string]any)["base_fee"] = 1200
	newer["extras"] = map[string]any{"transportation": 250}
	reg := parse(t, map[string]any{"socal": []any{version("2023-01-01"), newer}})

	rates, err := reg.LoadRates("SoCal", date(2024, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", rates.Effective.Format(dateLayout))
	assert.Equal(t, "1200", rates.Bar.BaseFee.String())
	require.Len(t, rates.Extras, 1)
	assert.Equal(t, "250", rates.Extras[0].Amount.String())

	rates, err = reg.LoadRates("SOCAL", date(2023, 12, 31))
	require.NoError(t, err)
	assert.Equal(t, "2023-01-01", rates.Effective.Format(dateLayout))

	rates, err = reg.LoadRates("SOCAL", date(2024, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", rates.Effective.Format(dateLayout))
}

func TestLoadRatesBeforeEarliestVersion(t *testing.T) {
	reg := parse(t, map[string]any{"SOCAL": []any{version("2023-01-01")}})

	_, err := reg.LoadRates("SOCAL", date(2022, 12, 31))
	var nev *NoEffectiveVersionError
	require.ErrorAs(t, err, &nev)
	assert.Equal(t, "SOCAL", nev.Zone)
	assert.ErrorIs(t, err, ErrRateConfig)
}

func TestLoadRatesUnknownZone(t *testing.T) {
	reg := parse(t, map[string]any{"SOCAL": []any{version("2023-01-01")}})

	_, err := reg.LoadRates("GULF", date(2024, 1, 1))
	var uz *UnknownZoneError
	require.ErrorAs(t, err, &uz)
	assert.Equal(t, "GULF", uz.Zone)
	assert.ErrorIs(t, err, ErrRateConfig)

	_, err = reg.LoadRates("  ", date(2024, 1, 1))
	assert.ErrorAs(t, err, &uz)
}

func TestMissingRateFieldNamesExactPath(t *testing.T) {
	paths := [][]string{
		{"effective"}, {"bar"}, {"bay"}, {"river"}, {"surcharges"}, {"extras"},
		{"bar", "base_fee"}, {"bar", "per_foot_rate"}, {"bar", "draft_multiplier"},
		{"bar", "min_total"}, {"bar", "max_total"},
		{"bay", "per_foot_rate"}, {"bay", "minimum"},
		{"river", "per_foot_rate"}, {"river", "minimum"},
		{"surcharges", "weekend_multiplier"}, {"surcharges", "holiday_multiplier"},
		{"surcharges", "night_flat"},
	}

	for _, path := range paths {
		want := "NORCAL." + path[0]
		if len(path) == 2 {
			want += "." + path[1]
		}
		t.Run(want, func(t *testing.T) {
			v := version("2024-01-01")
			if len(path) == 1 {
				delete(v, path[0])
			} else {
				delete(v[path[0]].(map[string]any), path[1])
			}
			reg := parse(t, map[string]any{"NORCAL": []any{v}})

			_, err := reg.LoadRates("NORCAL", date(2025, 1, 1))
			var mf *MissingRateFieldError
			require.ErrorAs(t, err, &mf)
			assert.Equal(t, want, mf.Path)
			assert.Equal(t, "missing rate field: "+want, err.Error())
			assert.ErrorIs(t, err, ErrRateConfig)
		})
	}
}

func TestBrokenOlderVersionFailsLookup(t *testing.T) {
	old := version("2020-01-01")
	delete(old["bay"].(map[string]any), "minimum")
	reg := parse(t, map[string]any{"NORCAL": []any{old, version("2024-01-01")}})

	_, err := reg.LoadRates("NORCAL", date(2025, 1, 1))
	var mf *MissingRateFieldError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, "NORCAL.bay.minimum", mf.Path)
}

func TestExtrasMustBeMapping(t *testing.T) {
	v := version("2024-01-01")
	v["extras"] = []any{"transportation"}
	reg := parse(t, map[string]any{"NORCAL": []any{v}})

	_, err := reg.LoadRates("NORCAL", date(2025, 1, 1))
	var mf *MissingRateFieldError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, "NORCAL.extras", mf.Path)
}

func TestMillRateZoneRequiresMillRateBlock(t *testing.T) {
	reg := parse(t, map[string]any{"SFBAR": []any{version("2024-01-01")}})

	_, err := reg.LoadRates("SFBAR", date(2025, 1, 1))
	var mf *MissingRateFieldError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, "SFBAR.mill_rate", mf.Path)

	v := version("2024-01-01")
	v["mill_rate"] = map[string]any{
		"mill_rate": 0.07, "pension_mill_rate": 0.01, "pilot_boat_surcharge": 0.005,
		"board_ops_percent": 0.03, "continuing_education": 200, "minimum": 3000,
	}
	reg = parse(t, map[string]any{"SFBAR": []any{v}})
	_, err = reg.LoadRates("SFBAR", date(2025, 1, 1))
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, "SFBAR.mill_rate.trainee", mf.Path)
}

func TestInvalidNumber(t *testing.T) {
	v := version("2024-01-01")
	v["bar"].(map[string]any)["base_fee"] = "lots"
	reg := parse(t, map[string]any{"NORCAL": []any{v}})

	_, err := reg.LoadRates("NORCAL", date(2025, 1, 1))
	var inv *InvalidRateFieldError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "NORCAL.bar.base_fee", inv.Path)
	assert.True(t, errors.Is(err, ErrRateConfig))
}

func TestValuesAreExactDecimals(t *testing.T) {
	v := version("2024-01-01")
	v["bar"].(map[string]any)["draft_multiplier"] = json.Number("1.1")
	reg := parse(t, map[string]any{"NORCAL": []any{v}})

	rates, err := reg.LoadRates("NORCAL", date(2025, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, "1.1", rates.Bar.DraftMultiplier.String())
}

func TestBundledRegistry(t *testing.T) {
	reg, err := OpenRegistry(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, BundledSource, reg.Source())
	assert.Contains(t, reg.Zones(), "NORCAL")

	for _, zone := range reg.Zones() {
		_, err := reg.LoadRates(zone, date(2026, 1, 1))
		assert.NoError(t, err, zone)
	}

	rates, err := reg.LoadRates("NORCAL", date(2025, 6, 30))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", rates.Effective.Format(dateLayout))

	rates, err = reg.LoadRates("NORCAL", date(2025, 7, 1))
	require.NoError(t, err)
	assert.Equal(t, "2025-07-01", rates.Effective.Format(dateLayout))

	sfbar, err := reg.LoadRates("SFBAR", date(2026, 1, 1))
	require.NoError(t, err)
	require.NotNil(t, sfbar.MillRate)
	assert.Equal(t, "3000", sfbar.MillRate.Minimum.String())
}

func TestOpenRegistryFromFileIsMemoized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.json")
	data, err := json.Marshal(map[string]any{"PUGET": []any{version("2024-01-01")}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	first, err := OpenRegistry(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	second, err := OpenRegistry(context.Background(), path)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestLoadPilotageRatesUsesEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.json")
	data, err := json.Marshal(map[string]any{"GULF": []any{version("2024-01-01")}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	t.Setenv(EnvRatesPath, path)

	rates, err := LoadPilotageRates(context.Background(), "gulf", date(2024, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, "GULF", rates.Zone)
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := parseS3URI("s3://tariffs/pilotage/rates.json")
	require.NoError(t, err)
	assert.Equal(t, "tariffs", bucket)
	assert.Equal(t, "pilotage/rates.json", key)

	_, _, err = parseS3URI("s3://tariffs")
	assert.Error(t, err)
}

func TestAWSRegionReachesS3Config(t *testing.T) {
	var so sourceOptions
	WithAWSRegion(" eu-west-1 ")(&so)

	var lo config.LoadOptions
	for _, fn := range awsLoadOptions(so) {
		require.NoError(t, fn(&lo))
	}
	assert.Equal(t, "eu-west-1", lo.Region)

	assert.Empty(t, awsLoadOptions(sourceOptions{}))
}

func TestParseRegistryRejectsNonMapping(t *testing.T) {
	_, err := ParseRegistry([]byte(`["NORCAL"]`), "bad")
	assert.Error(t, err)
}
