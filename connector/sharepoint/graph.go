package sharepoint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// graphBaseURL is the Microsoft Graph v1.0 endpoint.
const graphBaseURL = "https://graph.microsoft.com/v1.0"

// graphScope is the token scope for application access to Graph.
const graphScope = "https://graph.microsoft.com/.default"

// requestTimeout bounds one Graph call.
const requestTimeout = 30 * time.Second

// graphClient implements GraphAPI over the Graph REST endpoint with a
// bearer token from the injected credential. Graph has no official Go SDK
// shape for the metadata this connector needs, so the wire handling stays
// here, flattened away from the rest of the connector.
type graphClient struct {
	cred azcore.TokenCredential
	http *http.Client
	base string
}

func newGraphClient(cred azcore.TokenCredential) *graphClient {
	return &graphClient{
		cred: cred,
		http: &http.Client{Timeout: requestTimeout},
		base: graphBaseURL,
	}
}

// Wire shapes. Graph facet presence distinguishes files from folders.
type graphSite struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	WebURL      string `json:"webUrl"`
}

type graphIdentity struct {
	User struct {
		DisplayName string `json:"displayName"`
	} `json:"user"`
}

type graphDrive struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	DriveType string        `json:"driveType"`
	WebURL    string        `json:"webUrl"`
	Owner     graphIdentity `json:"owner"`
}

type graphItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ETag         string `json:"eTag"`
	WebURL       string `json:"webUrl"`
	LastModified string `json:"lastModifiedDateTime"`
	File         *struct {
		MimeType string `json:"mimeType"`
	} `json:"file"`
	Folder    *struct{}     `json:"folder"`
	CreatedBy graphIdentity `json:"createdBy"`
}

type graphList[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// get fetches one Graph URL into out. Non-2xx responses are decoded and
// normalized onto the scan error sentinels.
func (c *graphClient) get(ctx context.Context, rawURL string, out any) error {
	token, err := c.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{graphScope}})
	if err != nil {
		return fmt.Errorf("acquire graph token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return convertTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return convertTransportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return convertGraphError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode graph response: %w", err)
	}
	return nil
}

// page fetches one page of a collection listing: the cursor when one is
// set, the first-page URL otherwise.
func page[T any](ctx context.Context, c *graphClient, firstPage, cursor string) (graphList[T], error) {
	u := firstPage
	if cursor != "" {
		u = cursor
	}
	var list graphList[T]
	err := c.get(ctx, u, &list)
	return list, err
}

func (c *graphClient) SiteByPath(ctx context.Context, hostname, relativePath string) (Site, error) {
	u := fmt.Sprintf("%s/sites/%s:/%s", c.base, url.PathEscape(hostname), strings.TrimPrefix(relativePath, "/"))
	var s graphSite
	if err := c.get(ctx, u, &s); err != nil {
		return Site{}, err
	}
	return siteFromWire(s), nil
}

func (c *graphClient) ListSites(ctx context.Context, cursor string) (SitePage, error) {
	list, err := page[graphSite](ctx, c, c.base+"/sites?search=*", cursor)
	if err != nil {
		return SitePage{}, err
	}
	out := SitePage{Sites: make([]Site, 0, len(list.Value)), NextLink: list.NextLink}
	for _, s := range list.Value {
		out.Sites = append(out.Sites, siteFromWire(s))
	}
	return out, nil
}

func (c *graphClient) ListDrives(ctx context.Context, siteID, cursor string) (DrivePage, error) {
	first := fmt.Sprintf("%s/sites/%s/drives", c.base, url.PathEscape(siteID))
	list, err := page[graphDrive](ctx, c, first, cursor)
	if err != nil {
		return DrivePage{}, err
	}
	out := DrivePage{Drives: make([]Drive, 0, len(list.Value)), NextLink: list.NextLink}
	for _, d := range list.Value {
		out.Drives = append(out.Drives, driveFromWire(d))
	}
	return out, nil
}

func (c *graphClient) Drive(ctx context.Context, siteID, driveID string) (Drive, error) {
	u := fmt.Sprintf("%s/sites/%s/drives/%s", c.base, url.PathEscape(siteID), url.PathEscape(driveID))
	var d graphDrive
	if err := c.get(ctx, u, &d); err != nil {
		return Drive{}, err
	}
	return driveFromWire(d), nil
}

func (c *graphClient) Item(ctx context.Context, siteID, driveID, itemID string) (Item, error) {
	u := fmt.Sprintf("%s/sites/%s/drives/%s/items/%s",
		c.base, url.PathEscape(siteID), url.PathEscape(driveID), url.PathEscape(itemID))
	var it graphItem
	if err := c.get(ctx, u, &it); err != nil {
		return Item{}, err
	}
	return itemFromWire(it), nil
}

func (c *graphClient) ListChildren(ctx context.Context, siteID, driveID, itemID, cursor string) (ItemPage, error) {
	var first string
	if itemID == "" {
		first = fmt.Sprintf("%s/sites/%s/drives/%s/root/children",
			c.base, url.PathEscape(siteID), url.PathEscape(driveID))
	} else {
		first = fmt.Sprintf("%s/sites/%s/drives/%s/items/%s/children",
			c.base, url.PathEscape(siteID), url.PathEscape(driveID), url.PathEscape(itemID))
	}
	list, err := page[graphItem](ctx, c, first, cursor)
	if err != nil {
		return ItemPage{}, err
	}
	out := ItemPage{Items: make([]Item, 0, len(list.Value)), NextLink: list.NextLink}
	for _, it := range list.Value {
		out.Items = append(out.Items, itemFromWire(it))
	}
	return out, nil
}

func siteFromWire(s graphSite) Site {
	name := s.DisplayName
	if name == "" {
		name = s.Name
	}
	return Site{ID: s.ID, Name: name, WebURL: s.WebURL}
}

func driveFromWire(d graphDrive) Drive {
	return Drive{
		ID:        d.ID,
		Name:      d.Name,
		DriveType: d.DriveType,
		WebURL:    d.WebURL,
		Owner:     d.Owner.User.DisplayName,
	}
}

func itemFromWire(it graphItem) Item {
	item := Item{
		ID:        it.ID,
		Name:      it.Name,
		IsFolder:  it.Folder != nil,
		Size:      it.Size,
		ETag:      it.ETag,
		WebURL:    it.WebURL,
		CreatedBy: it.CreatedBy.User.DisplayName,
	}
	if it.File != nil {
		item.MimeType = it.File.MimeType
	}
	if it.LastModified != "" {
		if t, err := time.Parse(time.RFC3339, it.LastModified); err == nil {
			t = t.UTC()
			item.LastModified = &t
		}
	}
	return item
}

var _ GraphAPI = (*graphClient)(nil)
