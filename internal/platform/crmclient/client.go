// Package crmclient is the outgoing HTTP client for the synchronized CRM
// (Follow Up Boss): Basic auth with the API key as username and an empty
// password, paginated collection endpoints, and just enough shape to page
// people and resolve assigned-user identities. Everything else about the
// CRM's wire format is out of scope.
package crmclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/haloestate/leadpipe/pkg/pipelineerr"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

func (c *Client) authHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.apiKey+":"))
}

// User is the CRM-side account a person may be assigned to.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type usersResponse struct {
	Metadata struct {
		Offset int `json:"offset"`
		Limit  int `json:"limit"`
		Total  int `json:"total"`
	} `json:"_metadata"`
	Users []User `json:"users"`
}

// Person is one CRM person record, shaped loosely enough to survive fields
// the core doesn't care about.
type Person struct {
	ID             string          `json:"id"`
	FirstName      string          `json:"firstName"`
	LastName       string          `json:"lastName"`
	Emails         []ContactValue  `json:"emails"`
	Phones         []ContactValue  `json:"phones"`
	Addresses      []AddressValue  `json:"addresses"`
	AssignedUserID *int            `json:"assignedUserId"`
	Stage          string          `json:"stage"`
	Source         string          `json:"source"`
	Tags           []string        `json:"tags"`
	UpdatedAt      string          `json:"updated"`
}

type ContactValue struct {
	Value string `json:"value"`
}

type AddressValue struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"code"`
}

type peopleResponse struct {
	Metadata struct {
		Offset int `json:"offset"`
		Limit  int `json:"limit"`
		Total  int `json:"total"`
	} `json:"_metadata"`
	People []Person `json:"people"`
}

// TestConnection makes a low-cost authenticated call to verify credentials
// before a sync run commits to a full page walk.
func (c *Client) TestConnection(ctx context.Context) error {
	_, _, err := c.fetchUsersPage(ctx, 0, 1)
	return err
}

// FetchAllUsers pages through the users endpoint and returns the full set,
// used once per sync run to build the assigned-user resolution map.
func (c *Client) FetchAllUsers(ctx context.Context) ([]User, error) {
	const pageSize = 100
	var all []User
	offset := 0
	for {
		page, total, err := c.fetchUsersPage(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		offset += len(page)
		if offset >= total || len(page) == 0 {
			break
		}
	}
	return all, nil
}

func (c *Client) fetchUsersPage(ctx context.Context, offset, limit int) ([]User, int, error) {
	q := url.Values{}
	q.Set("offset", fmt.Sprintf("%d", offset))
	q.Set("limit", fmt.Sprintf("%d", limit))

	var parsed usersResponse
	if err := c.get(ctx, "/users", q, &parsed); err != nil {
		return nil, 0, err
	}
	return parsed.Users, parsed.Metadata.Total, nil
}

// FetchPeoplePage fetches one page of the people collection, optionally
// filtered to records updated after updatedAfter (incremental sync). It
// returns the page, the total record count reported by the CRM, and
// whether more pages remain.
func (c *Client) FetchPeoplePage(ctx context.Context, offset, limit int, updatedAfter *time.Time) (people []Person, total int, hasMore bool, err error) {
	q := url.Values{}
	q.Set("offset", fmt.Sprintf("%d", offset))
	q.Set("limit", fmt.Sprintf("%d", limit))
	if updatedAfter != nil {
		q.Set("updatedAfter", updatedAfter.UTC().Format(time.RFC3339))
	}

	var parsed peopleResponse
	if err := c.get(ctx, "/people", q, &parsed); err != nil {
		return nil, 0, false, err
	}

	hasMore = parsed.Metadata.Offset+len(parsed.People) < parsed.Metadata.Total
	return parsed.People, parsed.Metadata.Total, hasMore, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build CRM request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pipelineerr.TransientInfra("CRM request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return pipelineerr.TransientInfra("reading CRM response", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return pipelineerr.TransientInfra(fmt.Sprintf("CRM returned %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return pipelineerr.PermanentInfra("CRM rejected credentials", nil)
	case resp.StatusCode >= 400:
		return pipelineerr.PermanentInfra(fmt.Sprintf("CRM returned %d: %s", resp.StatusCode, string(body)), nil)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return pipelineerr.PermanentInfra("malformed CRM response", err)
	}
	return nil
}
