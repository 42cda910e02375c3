package azure

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
	dlservice "github.com/Azure/azure-sdk-for-go/sdk/storage/azdatalake/service"

	scanerrors "github.com/driftlake/metascan/errors"
)

// sdkClients implements AzureAPI over the live Azure SDKs. Blob and
// datalake service clients are built lazily per account and cached;
// resource groups are learned from management listings so later property
// lookups can address accounts directly.
type sdkClients struct {
	cfg      Config
	cred     azcore.TokenCredential
	accounts *armstorage.AccountsClient

	mu       sync.Mutex
	blobSvcs map[string]*service.Client
	dfsSvcs  map[string]*dlservice.Client
	rgByName map[string]string
}

func newSDKClients(cfg Config) (*sdkClients, error) {
	c := &sdkClients{
		cfg:      cfg,
		blobSvcs: map[string]*service.Client{},
		dfsSvcs:  map[string]*dlservice.Client{},
		rgByName: map[string]string{},
	}
	if cfg.AccountName != "" && cfg.ResourceGroup != "" {
		c.rgByName[cfg.AccountName] = cfg.ResourceGroup
	}

	needCred := cfg.SubscriptionID != "" || (cfg.AccountName != "" && cfg.ConnectionString == "")
	switch {
	case cfg.TenantID != "" && cfg.ClientID != "" && cfg.ClientSecret != "":
		cred, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
		if err != nil {
			return nil, fmt.Errorf("service principal credential: %w", err)
		}
		c.cred = cred
	case needCred:
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("default credential chain: %w", err)
		}
		c.cred = cred
	}

	if cfg.SubscriptionID != "" {
		accounts, err := armstorage.NewAccountsClient(cfg.SubscriptionID, c.cred, nil)
		if err != nil {
			return nil, fmt.Errorf("management client: %w", err)
		}
		c.accounts = accounts
	}
	return c, nil
}

func (c *sdkClients) blobService(account string) (*service.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if svc, ok := c.blobSvcs[account]; ok {
		return svc, nil
	}

	var svc *service.Client
	var err error
	switch {
	case c.cfg.ConnectionString != "" && (account == "" || account == c.cfg.AccountName):
		svc, err = service.NewClientFromConnectionString(c.cfg.ConnectionString, nil)
	default:
		name := account
		if name == "" {
			name = c.cfg.AccountName
		}
		if name == "" {
			return nil, fmt.Errorf("%w: no storage account configured", scanerrors.ErrInvalidInput)
		}
		if c.cred == nil {
			return nil, fmt.Errorf("%w: a token credential is required for account %q",
				scanerrors.ErrInvalidCredentials, name)
		}
		svc, err = service.NewClient("https://"+name+".blob.core.windows.net/", c.cred, nil)
	}
	if err != nil {
		return nil, err
	}
	c.blobSvcs[account] = svc
	return svc, nil
}

func (c *sdkClients) dfsService(account string) (*dlservice.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if svc, ok := c.dfsSvcs[account]; ok {
		return svc, nil
	}

	var svc *dlservice.Client
	var err error
	switch {
	case c.cfg.ConnectionString != "" && (account == "" || account == c.cfg.AccountName):
		svc, err = dlservice.NewClientFromConnectionString(c.cfg.ConnectionString, nil)
	default:
		name := account
		if name == "" {
			name = c.cfg.AccountName
		}
		if name == "" {
			return nil, fmt.Errorf("%w: no storage account configured", scanerrors.ErrInvalidInput)
		}
		if c.cred == nil {
			return nil, fmt.Errorf("%w: a token credential is required for account %q",
				scanerrors.ErrInvalidCredentials, name)
		}
		svc, err = dlservice.NewClient("https://"+name+".dfs.core.windows.net/", c.cred, nil)
	}
	if err != nil {
		return nil, err
	}
	c.dfsSvcs[account] = svc
	return svc, nil
}

func (c *sdkClients) setResourceGroup(account, rg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rg != "" {
		c.rgByName[account] = rg
	}
}

func (c *sdkClients) resourceGroup(account string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rgByName[account]
}

func (c *sdkClients) ListAccounts(ctx context.Context) ([]AccountMeta, error) {
	if c.accounts == nil {
		return nil, fmt.Errorf("%w: no subscription configured", scanerrors.ErrUnsupported)
	}

	var metas []AccountMeta
	pager := c.accounts.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, acct := range page.Value {
			meta := accountToMeta(acct)
			c.setResourceGroup(meta.Name, meta.ResourceGroup)
			metas = append(metas, meta)
		}
	}
	return metas, nil
}

func (c *sdkClients) AccountProperties(ctx context.Context, account string) (AccountMeta, error) {
	if c.accounts == nil {
		return AccountMeta{}, fmt.Errorf("%w: no subscription configured", scanerrors.ErrUnsupported)
	}
	name := account
	if name == "" {
		name = c.cfg.AccountName
	}
	rg := c.resourceGroup(name)
	if name == "" || rg == "" {
		return AccountMeta{}, fmt.Errorf("%w: resource group unknown for account %q",
			scanerrors.ErrUnsupported, name)
	}

	resp, err := c.accounts.GetProperties(ctx, rg, name, nil)
	if err != nil {
		return AccountMeta{}, err
	}
	return accountToMeta(&resp.Account), nil
}

func (c *sdkClients) AccountInfo(ctx context.Context, account string) (DataAccountInfo, error) {
	svc, err := c.blobService(account)
	if err != nil {
		return DataAccountInfo{}, err
	}
	resp, err := svc.GetAccountInfo(ctx, nil)
	if err != nil {
		return DataAccountInfo{}, err
	}

	info := DataAccountInfo{}
	if resp.SKUName != nil {
		info.SKUName = string(*resp.SKUName)
	}
	if resp.AccountKind != nil {
		info.AccountKind = string(*resp.AccountKind)
	}
	if resp.IsHierarchicalNamespaceEnabled != nil {
		info.HNSEnabled = *resp.IsHierarchicalNamespaceEnabled
	}
	return info, nil
}

func (c *sdkClients) ListContainers(ctx context.Context, account, marker string) (ContainerPage, error) {
	svc, err := c.blobService(account)
	if err != nil {
		return ContainerPage{}, err
	}

	opts := &service.ListContainersOptions{}
	if marker != "" {
		opts.Marker = &marker
	}
	pager := svc.NewListContainersPager(opts)
	if !pager.More() {
		return ContainerPage{}, nil
	}
	resp, err := pager.NextPage(ctx)
	if err != nil {
		return ContainerPage{}, err
	}

	page := ContainerPage{Containers: make([]string, 0, len(resp.ContainerItems))}
	for _, item := range resp.ContainerItems {
		page.Containers = append(page.Containers, deref(item.Name))
	}
	if resp.NextMarker != nil {
		page.NextMarker = *resp.NextMarker
	}
	return page, nil
}

func (c *sdkClients) ContainerProperties(ctx context.Context, account, containerName string) (ContainerProps, error) {
	svc, err := c.blobService(account)
	if err != nil {
		return ContainerProps{}, err
	}
	resp, err := svc.NewContainerClient(containerName).GetProperties(ctx, nil)
	if err != nil {
		return ContainerProps{}, err
	}

	props := ContainerProps{
		Metadata:     derefMap(resp.Metadata),
		LastModified: utcPtr(resp.LastModified),
	}
	if resp.ETag != nil {
		props.ETag = string(*resp.ETag)
	}
	if resp.LeaseStatus != nil {
		props.LeaseStatus = string(*resp.LeaseStatus)
	}
	if resp.LeaseState != nil {
		props.LeaseState = string(*resp.LeaseState)
	}
	return props, nil
}

func (c *sdkClients) ListBlobsHierarchy(ctx context.Context, account, containerName string, opts HierarchyOptions) (HierarchyPage, error) {
	svc, err := c.blobService(account)
	if err != nil {
		return HierarchyPage{}, err
	}

	lopts := &container.ListBlobsHierarchyOptions{
		Include: container.ListBlobsInclude{
			Metadata: opts.IncludeMetadata,
			Tags:     opts.IncludeTags,
		},
	}
	if opts.Prefix != "" {
		lopts.Prefix = &opts.Prefix
	}
	if opts.Marker != "" {
		lopts.Marker = &opts.Marker
	}

	pager := svc.NewContainerClient(containerName).NewListBlobsHierarchyPager("/", lopts)
	if !pager.More() {
		return HierarchyPage{}, nil
	}
	resp, err := pager.NextPage(ctx)
	if err != nil {
		return HierarchyPage{}, err
	}

	page := HierarchyPage{}
	if resp.Segment != nil {
		for _, p := range resp.Segment.BlobPrefixes {
			page.Prefixes = append(page.Prefixes, deref(p.Name))
		}
		for _, item := range resp.Segment.BlobItems {
			page.Blobs = append(page.Blobs, blobItemToEntry(item))
		}
	}
	if resp.NextMarker != nil {
		page.NextMarker = *resp.NextMarker
	}
	return page, nil
}

func (c *sdkClients) BlobProperties(ctx context.Context, account, containerName, name string) (BlobProps, error) {
	svc, err := c.blobService(account)
	if err != nil {
		return BlobProps{}, err
	}
	resp, err := svc.NewContainerClient(containerName).NewBlobClient(name).GetProperties(ctx, nil)
	if err != nil {
		return BlobProps{}, err
	}

	props := BlobProps{
		Size:         derefInt64(resp.ContentLength),
		LastModified: utcPtr(resp.LastModified),
		LastAccessed: utcPtr(resp.LastAccessed),
		ContentType:  deref(resp.ContentType),
		Metadata:     derefMap(resp.Metadata),
	}
	if resp.ETag != nil {
		props.ETag = string(*resp.ETag)
	}
	return props, nil
}

func (c *sdkClients) BlobTags(ctx context.Context, account, containerName, name string) (map[string]string, error) {
	svc, err := c.blobService(account)
	if err != nil {
		return nil, err
	}
	resp, err := svc.NewContainerClient(containerName).NewBlobClient(name).GetTags(ctx, nil)
	if err != nil {
		return nil, err
	}

	tags := map[string]string{}
	for _, t := range resp.BlobTagSet {
		tags[strings.TrimSpace(deref(t.Key))] = deref(t.Value)
	}
	return tags, nil
}

func (c *sdkClients) GetAccessControl(ctx context.Context, account, containerName, path string, isDirectory bool) (AccessControl, error) {
	svc, err := c.dfsService(account)
	if err != nil {
		return AccessControl{}, err
	}

	fs := svc.NewFileSystemClient(containerName)
	if isDirectory {
		resp, err := fs.NewDirectoryClient(path).GetAccessControl(ctx, nil)
		if err != nil {
			return AccessControl{}, err
		}
		return AccessControl{
			Owner:       deref(resp.Owner),
			Group:       deref(resp.Group),
			Permissions: deref(resp.Permissions),
		}, nil
	}

	resp, err := fs.NewFileClient(path).GetAccessControl(ctx, nil)
	if err != nil {
		return AccessControl{}, err
	}
	return AccessControl{
		Owner:       deref(resp.Owner),
		Group:       deref(resp.Group),
		Permissions: deref(resp.Permissions),
	}, nil
}

func (c *sdkClients) DirectoryProperties(ctx context.Context, account, containerName, path string) (DirProps, error) {
	svc, err := c.dfsService(account)
	if err != nil {
		return DirProps{}, err
	}
	resp, err := svc.NewFileSystemClient(containerName).NewDirectoryClient(path).GetProperties(ctx, nil)
	if err != nil {
		return DirProps{}, err
	}
	return DirProps{
		LastModified: utcPtr(resp.LastModified),
		Metadata:     derefMap(resp.Metadata),
	}, nil
}

func blobItemToEntry(item *container.BlobItem) BlobEntry {
	e := BlobEntry{
		Name:     deref(item.Name),
		Metadata: derefMap(item.Metadata),
	}
	if p := item.Properties; p != nil {
		e.Size = derefInt64(p.ContentLength)
		e.LastModified = utcPtr(p.LastModified)
		e.LastAccessed = utcPtr(p.LastAccessedOn)
		e.ContentType = deref(p.ContentType)
		if p.ETag != nil {
			e.ETag = string(*p.ETag)
		}
	}
	if item.BlobTags != nil {
		e.Tags = map[string]string{}
		for _, t := range item.BlobTags.BlobTagSet {
			e.Tags[strings.TrimSpace(deref(t.Key))] = deref(t.Value)
		}
	}
	for k, v := range e.Metadata {
		if strings.EqualFold(k, "hdi_isfolder") && strings.EqualFold(v, "true") {
			e.IsFolder = true
		}
	}
	return e
}

func accountToMeta(acct *armstorage.Account) AccountMeta {
	meta := AccountMeta{
		Name:     deref(acct.Name),
		Location: deref(acct.Location),
		Tags:     derefMap(acct.Tags),
		Extra:    map[string]any{},
	}
	if id := deref(acct.ID); id != "" {
		meta.Extra["id"] = id
		// /subscriptions/{sub}/resourceGroups/{rg}/providers/...
		if _, rest, ok := strings.Cut(id, "/resourceGroups/"); ok {
			meta.ResourceGroup, _, _ = strings.Cut(rest, "/")
		}
	}
	if acct.Type != nil {
		meta.Extra["type"] = *acct.Type
	}
	if p := acct.Properties; p != nil {
		if p.ProvisioningState != nil {
			meta.Extra["provisioning_state"] = string(*p.ProvisioningState)
		}
		if p.CreationTime != nil {
			meta.Extra["creation_time"] = p.CreationTime.UTC().Format(time.RFC3339)
		}
	}
	return meta
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt64(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

func derefMap(m map[string]*string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = deref(v)
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

var _ AzureAPI = (*sdkClients)(nil)
