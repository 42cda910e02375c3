// Package databricks implements the managed volume connectors for
// Databricks workspaces.
//
// Unity Catalog volumes are the primary scan roots, discovered per catalog
// schema and walked through the Files API. A legacy DBFS connector covers
// pre-volume workspaces. Neither plane carries node tags, so records here
// resolve ownership from the volume owner alone.
package databricks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/driftlake/metascan"
	scanerrors "github.com/driftlake/metascan/errors"
	"github.com/driftlake/metascan/record"
	"github.com/driftlake/metascan/scan"
)

// Kind is the volume connector kind and the source label stamped on its
// records.
const Kind = "databricks_volume"

// DBFSKind is the legacy DBFS connector kind and source label.
const DBFSKind = "databricks_dbfs"

// volumesPrefix roots every Unity Catalog volume path.
const volumesPrefix = "/Volumes/"

// dbfsPrefix roots every DBFS path.
const dbfsPrefix = "dbfs:"

func init() {
	metascan.RegisterConnector(Kind, func(ctx context.Context, settings map[string]string) (scan.Connector, error) {
		return New(ctx, ConfigFromSettings(settings))
	})
	metascan.RegisterConnector(DBFSKind, func(ctx context.Context, settings map[string]string) (scan.Connector, error) {
		return NewDBFS(ctx, ConfigFromSettings(settings))
	})
}

// Config holds the configuration shared by both connectors. Host and Token
// are required.
type Config struct {
	// Host is the workspace URL.
	Host string

	// Token is a personal access token or service principal token.
	Token string

	// Catalog and Schema scope volume discovery. Both are required for
	// the volume connector.
	Catalog string
	Schema  string

	// Volume pins the scan to one volume of the catalog schema instead
	// of discovering all of them.
	Volume string

	// DBFSPath is the starting path for the DBFS connector. Defaults to
	// "dbfs:/".
	DBFSPath string

	// Logger receives connector diagnostics. Defaults to a discard logger.
	Logger *slog.Logger
}

// ConfigFromSettings builds a Config from flat string settings, using the
// key names the scanner configuration exposes.
func ConfigFromSettings(settings map[string]string) Config {
	return Config{
		Host:     settings["databricks_host"],
		Token:    settings["databricks_token"],
		Catalog:  settings["databricks_catalog"],
		Schema:   settings["databricks_schema"],
		Volume:   settings["databricks_volume"],
		DBFSPath: settings["databricks_dbfs_path"],
	}
}

func (c Config) validate() error {
	if c.Host == "" || c.Token == "" {
		return fmt.Errorf("%w: host and token are required", scanerrors.ErrInvalidInput)
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Connector scans Unity Catalog volumes. It implements scan.Connector.
type Connector struct {
	api DatabricksAPI
	cfg Config
	log *slog.Logger
}

// New creates a volume connector with the provided configuration.
//
// Example:
//
//	conn, err := databricks.New(ctx, databricks.Config{
//	    Host:    "https://adb-1234.azuredatabricks.net",
//	    Token:   token,
//	    Catalog: "main",
//	    Schema:  "default",
//	})
func New(ctx context.Context, cfg Config) (*Connector, error) {
	if err := cfg.validate(); err != nil {
		return nil, scanerrors.NewError("configure", Kind, err)
	}
	api, err := newSDKClient(cfg)
	if err != nil {
		return nil, scanerrors.NewError("configure", Kind, err)
	}
	return NewWithAPI(api, cfg), nil
}

// NewWithAPI creates a volume connector with a custom API implementation.
// This is primarily used for testing with a fake API.
func NewWithAPI(api DatabricksAPI, cfg Config) *Connector {
	return &Connector{api: api, cfg: cfg, log: cfg.logger()}
}

// Source returns the source label for records produced by this connector.
func (c *Connector) Source() string { return Kind }

// DiscoverRoots returns the pinned volume, or every volume of the
// configured catalog schema.
func (c *Connector) DiscoverRoots(ctx context.Context) ([]record.Root, error) {
	if c.cfg.Catalog == "" || c.cfg.Schema == "" {
		return nil, scanerrors.NewError("discover_roots", Kind, fmt.Errorf(
			"%w: catalog and schema are required", scanerrors.ErrInvalidInput))
	}

	if c.cfg.Volume != "" {
		return []record.Root{{
			Identifier:  volumePath(c.cfg.Catalog, c.cfg.Schema, c.cfg.Volume),
			DisplayName: c.cfg.Volume,
		}}, nil
	}

	volumes, err := c.api.ListVolumes(ctx, c.cfg.Catalog, c.cfg.Schema)
	if err != nil {
		return nil, scanerrors.NewError("discover_roots", Kind, err)
	}

	roots := make([]record.Root, 0, len(volumes))
	for _, v := range volumes {
		root := record.Root{
			Identifier:  volumePath(v.Catalog, v.Schema, v.Name),
			DisplayName: v.Name,
			Extra: map[string]any{
				"catalog":     v.Catalog,
				"schema":      v.Schema,
				"volume_type": v.VolumeType,
			},
		}
		if v.Owner != "" {
			root.Tags = map[string]string{"owner": v.Owner}
		}
		if v.Comment != "" {
			root.Extra["comment"] = v.Comment
		}
		roots = append(roots, root)
	}
	return roots, nil
}

// OpenRoot binds one "/Volumes/catalog/schema/volume" root.
func (c *Connector) OpenRoot(ctx context.Context, root record.Root) (scan.RootSource, error) {
	if !strings.HasPrefix(root.Identifier, volumesPrefix) {
		return nil, scanerrors.NewRootError("open_root", Kind, root.Identifier, fmt.Errorf(
			"%w: root identifier must start with %s", scanerrors.ErrInvalidInput, volumesPrefix))
	}
	return &pathSource{
		list: c.api.ListDirectory,
		kind: Kind,
		root: root,
		base: strings.TrimSuffix(root.Identifier, "/"),
		info: c.accountInfo(root),
		log:  c.log.With("source", Kind, "root", root.Identifier),
	}, nil
}

func (c *Connector) accountInfo(root record.Root) scan.AccountInfo {
	info := scan.AccountInfo{Extra: map[string]any{"workspace_host": c.api.Host()}}
	if owner := root.Tags["owner"]; owner != "" {
		info.RootTags = map[string]string{"owner": owner}
	}
	if catalogName, schema, volume, ok := splitVolumePath(root.Identifier); ok {
		info.Extra["catalog"] = catalogName
		info.Extra["schema"] = schema
		info.Extra["volume"] = volume
	}
	return info
}

// DBFSConnector scans the legacy DBFS filesystem. It implements
// scan.Connector.
type DBFSConnector struct {
	api DatabricksAPI
	cfg Config
	log *slog.Logger
}

// NewDBFS creates a DBFS connector with the provided configuration.
func NewDBFS(ctx context.Context, cfg Config) (*DBFSConnector, error) {
	if err := cfg.validate(); err != nil {
		return nil, scanerrors.NewError("configure", DBFSKind, err)
	}
	api, err := newSDKClient(cfg)
	if err != nil {
		return nil, scanerrors.NewError("configure", DBFSKind, err)
	}
	return NewDBFSWithAPI(api, cfg), nil
}

// NewDBFSWithAPI creates a DBFS connector with a custom API implementation.
// This is primarily used for testing with a fake API.
func NewDBFSWithAPI(api DatabricksAPI, cfg Config) *DBFSConnector {
	return &DBFSConnector{api: api, cfg: cfg, log: cfg.logger()}
}

// Source returns the source label for records produced by this connector.
func (c *DBFSConnector) Source() string { return DBFSKind }

// DiscoverRoots returns the configured DBFS path as the single root,
// defaulting to the filesystem root.
func (c *DBFSConnector) DiscoverRoots(ctx context.Context) ([]record.Root, error) {
	path := normalizeDBFSPath(c.cfg.DBFSPath)
	return []record.Root{{Identifier: path, DisplayName: path}}, nil
}

// OpenRoot binds one "dbfs:/..." root.
func (c *DBFSConnector) OpenRoot(ctx context.Context, root record.Root) (scan.RootSource, error) {
	if !strings.HasPrefix(root.Identifier, dbfsPrefix) {
		return nil, scanerrors.NewRootError("open_root", DBFSKind, root.Identifier, fmt.Errorf(
			"%w: root identifier must start with %s", scanerrors.ErrInvalidInput, dbfsPrefix))
	}
	return &pathSource{
		list: c.api.ListDBFS,
		kind: DBFSKind,
		root: root,
		base: strings.TrimSuffix(normalizeDBFSPath(root.Identifier), "/"),
		info: scan.AccountInfo{Extra: map[string]any{"workspace_host": c.api.Host()}},
		log:  c.log.With("source", DBFSKind, "root", root.Identifier),
	}, nil
}

func volumePath(catalogName, schema, volume string) string {
	return volumesPrefix + catalogName + "/" + schema + "/" + volume
}

// splitVolumePath extracts the catalog, schema and volume of a
// "/Volumes/catalog/schema/volume[/...]" path.
func splitVolumePath(p string) (catalogName, schema, volume string, ok bool) {
	rest := strings.TrimPrefix(p, volumesPrefix)
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 4)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// normalizeDBFSPath defaults the empty path to the DBFS root and repairs a
// bare scheme.
func normalizeDBFSPath(p string) string {
	if p == "" || p == dbfsPrefix {
		return dbfsPrefix + "/"
	}
	if !strings.HasPrefix(p, dbfsPrefix) {
		return dbfsPrefix + "/" + strings.TrimPrefix(p, "/")
	}
	return p
}

var (
	_ scan.Connector = (*Connector)(nil)
	_ scan.Connector = (*DBFSConnector)(nil)
)
