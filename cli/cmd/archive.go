package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	lodelib "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/vpd/cli/config"
	"github.com/pithecene-io/vpd/lode"
	"github.com/pithecene-io/vpd/metrics"
)

// ConfigFlag points at vpd.yaml.
var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to vpd.yaml",
	EnvVars: []string{"VPD_CONFIG"},
	Value:   config.DefaultPath,
}

// loadConfig reads --config. A missing file at the default location is
// an empty config; a missing file that was asked for is an error.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if !c.IsSet("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return &config.Config{}, nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, usageError("%v", err)
	}
	return cfg, nil
}

// archiveFlags override the archive section of vpd.yaml.
func archiveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "archive-backend",
			Usage: "Fault archive backend: fs or s3",
		},
		&cli.StringFlag{
			Name:  "archive-path",
			Usage: "Fault archive location (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "archive-s3-region",
			Usage: "AWS region for the s3 backend (optional, uses default chain)",
		},
	}
}

// archiveChoice is the resolved archive location.
type archiveChoice struct {
	dataset   string
	backend   string
	path      string
	region    string
	endpoint  string
	pathStyle bool
}

// applyArchiveFlags overlays the archive flags on cfg.
func applyArchiveFlags(c *cli.Context, cfg *config.Config) {
	if v := c.String("archive-backend"); v != "" {
		cfg.Archive.Backend = v
	}
	if v := c.String("archive-path"); v != "" {
		cfg.Archive.Path = v
	}
	if v := c.String("archive-s3-region"); v != "" {
		cfg.Archive.Region = v
	}
}

func archiveFromConfig(ac config.ArchiveConfig) archiveChoice {
	a := archiveChoice{
		dataset:   ac.Dataset,
		backend:   ac.Backend,
		path:      ac.Path,
		region:    ac.Region,
		endpoint:  ac.Endpoint,
		pathStyle: ac.S3PathStyle,
	}
	if a.backend == "" {
		a.backend = config.ArchiveFS
	}
	return a
}

func (a archiveChoice) validate() error {
	if a.path == "" {
		return errors.New("fault archive path is not configured (archive.path or --archive-path)")
	}
	switch a.backend {
	case config.ArchiveFS, config.ArchiveS3:
		return nil
	default:
		return fmt.Errorf("unknown archive backend %q (must be fs or s3)", a.backend)
	}
}

func (a archiveChoice) s3Config() lode.S3Config {
	bucket, prefix := lode.ParseS3Path(a.path)
	return lode.S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       a.region,
		Endpoint:     a.endpoint,
		UsePathStyle: a.pathStyle,
	}
}

// openArchive opens the archive for writing.
func openArchive(ctx context.Context, a archiveChoice, collector *metrics.Collector) (*lode.Archive, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	cfg := lode.Config{Dataset: a.dataset}

	var archive *lode.Archive
	var err error
	if a.backend == config.ArchiveS3 {
		archive, err = lode.NewS3Archive(ctx, cfg, a.s3Config())
	} else {
		archive, err = lode.NewFSArchive(cfg, a.path)
	}
	if err != nil {
		return nil, err
	}
	return archive.WithCollector(collector), nil
}

// openDataset opens the archive for reading.
func openDataset(ctx context.Context, a archiveChoice) (lodelib.Dataset, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	if a.backend == config.ArchiveS3 {
		return lode.NewReadDatasetS3(ctx, a.dataset, a.s3Config())
	}
	return lode.NewReadDatasetFS(a.dataset, a.path)
}
