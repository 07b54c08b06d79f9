package pilotage

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

//go:embed rates_registry.json
var bundledRegistry []byte

// BundledSource names the registry compiled into the binary.
const BundledSource = "bundled:rates_registry.json"

// EnvRatesPath overrides the registry location: a local path or s3://bucket/key.
const EnvRatesPath = "PILOTAGE_RATES_PATH"

var (
	cacheMu sync.Mutex
	cache   = map[string]*Registry{}
)

type sourceOptions struct {
	awsRegion string
}

// SourceOption configures how a registry location is read.
type SourceOption func(*sourceOptions)

// WithAWSRegion sets the region used for s3:// registry locations.
func WithAWSRegion(region string) SourceOption {
	return func(o *sourceOptions) { o.awsRegion = strings.TrimSpace(region) }
}

// OpenRegistry loads and memoizes the registry at path for the life of the
// process. An empty path selects the bundled registry.
func OpenRegistry(ctx context.Context, path string, opts ...SourceOption) (*Registry, error) {
	var so sourceOptions
	for _, opt := range opts {
		opt(&so)
	}

	key := strings.TrimSpace(path)
	if key == "" {
		key = BundledSource
	}

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if reg, ok := cache[key]; ok {
		return reg, nil
	}

	data, err := readSource(ctx, key, so)
	if err != nil {
		return nil, err
	}
	reg, err := ParseRegistry(data, key)
	if err != nil {
		return nil, err
	}
	cache[key] = reg
	return reg, nil
}

// DefaultRegistry opens the registry named by PILOTAGE_RATES_PATH, or the bundled one.
func DefaultRegistry(ctx context.Context) (*Registry, error) {
	return OpenRegistry(ctx, os.Getenv(EnvRatesPath))
}

// LoadPilotageRates resolves rates for zone on asOf from the default registry.
func LoadPilotageRates(ctx context.Context, zone string, asOf time.Time) (*RateEntry, error) {
	reg, err := DefaultRegistry(ctx)
	if err != nil {
		return nil, err
	}
	return reg.LoadRates(zone, asOf)
}

func readSource(ctx context.Context, key string, so sourceOptions) ([]byte, error) {
	switch {
	case key == BundledSource:
		return bundledRegistry, nil
	case strings.HasPrefix(key, "s3://"):
		return readS3(ctx, key, so)
	default:
		data, err := os.ReadFile(key)
		if err != nil {
			return nil, fmt.Errorf("failed to read rates registry: %w", err)
		}
		return data, nil
	}
}

func awsLoadOptions(so sourceOptions) []func(*config.LoadOptions) error {
	var opts []func(*config.LoadOptions) error
	if so.awsRegion != "" {
		opts = append(opts, config.WithRegion(so.awsRegion))
	}
	return opts
}

func readS3(ctx context.Context, uri string, so sourceOptions) ([]byte, error) {
	bucket, objectKey, err := parseS3URI(uri)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadDefaultConfig(ctx, awsLoadOptions(so)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rates registry from %s: %w", uri, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rates registry body: %w", err)
	}
	return data, nil
}

func parseS3URI(uri string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 registry location %q, want s3://bucket/key", uri)
	}
	return bucket, key, nil
}
