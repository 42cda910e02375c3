// Package azure implements the hierarchical blob connector for Azure
// Storage.
//
// Containers are the scan roots, addressed as "container" on a single
// configured account or "account/container" when roots span a subscription.
// Listings run through the blob data plane with metadata and tag inclusion,
// POSIX owners come from the datalake plane on hierarchical-namespace
// accounts, container metadata feeds the container tag slot, and the
// management plane supplies account tags and location.
package azure

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/driftlake/metascan"
	scanerrors "github.com/driftlake/metascan/errors"
	"github.com/driftlake/metascan/record"
	"github.com/driftlake/metascan/scan"
)

// Kind is the connector kind and the source label stamped on records.
const Kind = "azure_blob"

// accountMetaTTL bounds how long management-plane account metadata is
// reused across roots of the same account.
const accountMetaTTL = 5 * time.Minute

func init() {
	metascan.RegisterConnector(Kind, func(ctx context.Context, settings map[string]string) (scan.Connector, error) {
		return New(ctx, ConfigFromSettings(settings))
	})
}

// Config holds the connector configuration. At least one of
// ConnectionString, AccountName or SubscriptionID must be set.
type Config struct {
	// ConnectionString authorizes the data plane for a single account.
	ConnectionString string

	// AccountName names the default storage account, reached with the
	// token credential over the blob and datalake endpoints.
	AccountName string

	// TenantID, ClientID and ClientSecret select a service principal.
	// When incomplete, the default Azure credential chain is used.
	TenantID     string
	ClientID     string
	ClientSecret string

	// SubscriptionID enables the management plane: account discovery,
	// account tags and location metadata.
	SubscriptionID string

	// ResourceGroup scopes management-plane property lookups for the
	// default account.
	ResourceGroup string

	// Containers restricts scanning to the named containers instead of
	// discovering them. Entries are "container" for the default account
	// or "account/container".
	Containers []string

	// AccountTags are merged under the management-plane account tags,
	// for deployments that carry ownership in configuration.
	AccountTags map[string]string

	// Logger receives connector diagnostics. Defaults to a discard logger.
	Logger *slog.Logger
}

// ConfigFromSettings builds a Config from flat string settings, using the
// key names the scanner configuration exposes.
func ConfigFromSettings(settings map[string]string) Config {
	cfg := Config{
		ConnectionString: settings["connection_string"],
		AccountName:      settings["azure_account_name"],
		TenantID:         settings["azure_tenant_id"],
		ClientID:         settings["azure_client_id"],
		ClientSecret:     settings["azure_client_secret"],
		SubscriptionID:   settings["azure_subscription_id"],
		ResourceGroup:    settings["azure_resource_group"],
	}
	if v := settings["container"]; v != "" {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cfg.Containers = append(cfg.Containers, c)
			}
		}
	}
	return cfg
}

// Connector scans Azure blob containers. It implements scan.Connector and
// scan.AccountReporter.
type Connector struct {
	api   AzureAPI
	cfg   Config
	cache *ttlcache.Cache[string, AccountMeta]
	log   *slog.Logger
}

// New creates an Azure connector with the provided configuration. A full
// service principal is preferred; otherwise the default Azure credential
// chain applies.
//
// Example:
//
//	conn, err := azure.New(ctx, azure.Config{
//	    AccountName: "prodlake",
//	    Containers:  []string{"raw", "curated"},
//	})
func New(ctx context.Context, cfg Config) (*Connector, error) {
	if cfg.ConnectionString == "" && cfg.AccountName == "" && cfg.SubscriptionID == "" {
		return nil, scanerrors.NewError("configure", Kind, fmt.Errorf(
			"%w: a connection string, account name or subscription id is required",
			scanerrors.ErrInvalidInput))
	}

	api, err := newSDKClients(cfg)
	if err != nil {
		return nil, scanerrors.NewError("configure", Kind, err)
	}
	return NewWithAPI(api, cfg), nil
}

// NewWithAPI creates a connector with a custom API implementation.
// This is primarily used for testing with fakes.
func NewWithAPI(api AzureAPI, cfg Config) *Connector {
	c := &Connector{
		api: api,
		cfg: cfg,
		cache: ttlcache.New[string, AccountMeta](
			ttlcache.WithTTL[string, AccountMeta](accountMetaTTL),
		),
		log: cfg.Logger,
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	return c
}

// Source returns the source label for records produced by this connector.
func (c *Connector) Source() string { return Kind }

// DiscoverRoots returns the configured containers, the default account's
// containers, or every (account, container) pair visible through the
// subscription. A single unreadable account skips, it does not fail
// discovery.
func (c *Connector) DiscoverRoots(ctx context.Context) ([]record.Root, error) {
	if len(c.cfg.Containers) > 0 {
		roots := make([]record.Root, 0, len(c.cfg.Containers))
		for _, id := range c.cfg.Containers {
			_, container := splitRootIdentifier(id)
			roots = append(roots, record.Root{Identifier: id, DisplayName: container})
		}
		return roots, nil
	}

	if c.cfg.SubscriptionID != "" {
		return c.discoverAcrossAccounts(ctx)
	}

	containers, err := c.listAllContainers(ctx, "")
	if err != nil {
		return nil, scanerrors.NewError("discover_roots", Kind, convertError(err))
	}
	roots := make([]record.Root, 0, len(containers))
	for _, name := range containers {
		roots = append(roots, record.Root{Identifier: name, DisplayName: name})
	}
	return roots, nil
}

func (c *Connector) discoverAcrossAccounts(ctx context.Context) ([]record.Root, error) {
	accounts, err := c.api.ListAccounts(ctx)
	if err != nil {
		return nil, scanerrors.NewError("discover_roots", Kind, convertError(err))
	}

	var roots []record.Root
	for _, acct := range accounts {
		c.cache.Set(acct.Name, acct, ttlcache.DefaultTTL)

		containers, err := c.listAllContainers(ctx, acct.Name)
		if err != nil {
			if ctx.Err() != nil {
				return roots, ctx.Err()
			}
			c.log.Warn("skipping unreadable storage account",
				"account", acct.Name, "error", err)
			continue
		}
		for _, name := range containers {
			roots = append(roots, record.Root{
				Identifier:  acct.Name + "/" + name,
				DisplayName: name,
				Tags:        acct.Tags,
				Location:    acct.Location,
				Extra:       map[string]any{"resource_group": acct.ResourceGroup},
			})
		}
	}
	return roots, nil
}

func (c *Connector) listAllContainers(ctx context.Context, account string) ([]string, error) {
	var names []string
	marker := ""
	for {
		page, err := c.api.ListContainers(ctx, account, marker)
		if err != nil {
			return nil, err
		}
		names = append(names, page.Containers...)
		if page.NextMarker == "" {
			return names, nil
		}
		marker = page.NextMarker
	}
}

// OpenRoot validates the container with a properties read and returns the
// per-container scan source.
func (c *Connector) OpenRoot(ctx context.Context, root record.Root) (scan.RootSource, error) {
	account, container := splitRootIdentifier(root.Identifier)
	if container == "" {
		return nil, scanerrors.NewRootError("open_root", Kind, root.Identifier,
			fmt.Errorf("%w: empty container name", scanerrors.ErrInvalidInput))
	}

	props, err := c.api.ContainerProperties(ctx, account, container)
	if err != nil {
		cerr := convertError(err)
		if scanerrors.IsNodeNotFound(cerr) {
			cerr = fmt.Errorf("%w: container %q", scanerrors.ErrRootNotFound, container)
		}
		return nil, scanerrors.NewRootError("open_root", Kind, root.Identifier, cerr)
	}

	if root.DisplayName == "" {
		root.DisplayName = container
	}
	return &containerSource{
		api:       c.api,
		conn:      c,
		root:      root,
		account:   account,
		container: container,
		props:     props,
		log:       c.log.With("source", Kind, "root", root.Identifier),
	}, nil
}

// AccountRecords describes every storage account in the subscription as an
// account-root record, carrying account tags, location and resource group.
func (c *Connector) AccountRecords(ctx context.Context) ([]record.Record, error) {
	if c.cfg.SubscriptionID == "" {
		return nil, nil
	}
	accounts, err := c.api.ListAccounts(ctx)
	if err != nil {
		return nil, scanerrors.NewError("account_records", Kind, convertError(err))
	}

	records := make([]record.Record, 0, len(accounts))
	for _, acct := range accounts {
		tags := scan.MergeTags(nil, acct.Tags, c.cfg.AccountTags)
		extra := map[string]any{
			"location":       acct.Location,
			"resource_group": acct.ResourceGroup,
		}
		for k, v := range acct.Extra {
			extra[k] = v
		}
		rec := record.NewAccountRecord(Kind, "azure://"+acct.Name, tags, extra)
		rec.Owner = scan.OwnerFromTags(tags)
		records = append(records, rec)
	}
	return records, nil
}

// accountMeta resolves management-plane account metadata through the
// connector's TTL cache, so sibling roots of one account share a single
// lookup.
func (c *Connector) accountMeta(ctx context.Context, account string) (AccountMeta, error) {
	key := account
	if key == "" {
		key = c.cfg.AccountName
	}
	if item := c.cache.Get(key); item != nil {
		return item.Value(), nil
	}

	meta, err := c.api.AccountProperties(ctx, account)
	if err != nil {
		return AccountMeta{}, err
	}
	c.cache.Set(key, meta, ttlcache.DefaultTTL)
	return meta, nil
}

// splitRootIdentifier splits "account/container" into its parts. A bare
// container name selects the default configured account.
func splitRootIdentifier(id string) (account, container string) {
	id = strings.TrimPrefix(id, "azure://")
	id = strings.Trim(id, "/")
	before, after, found := strings.Cut(id, "/")
	if !found {
		return "", before
	}
	return before, after
}

var (
	_ scan.Connector       = (*Connector)(nil)
	_ scan.AccountReporter = (*Connector)(nil)
)
