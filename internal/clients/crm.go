package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v4"
)

// CRMConfig connects the sales CRM.
type CRMConfig struct {
	LoginURL     string
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
	APIVersion   string
}

// CRMOpportunity is a sales opportunity as returned by the CRM, with the
// related account and owner flattened.
type CRMOpportunity struct {
	ID              string
	Number          string
	Name            string
	AccountID       string
	AccountName     string
	Amount          float64
	ExpectedRevenue float64
	CloseDate       string
	IsClosed        bool
	Stage           string
	Type            string
	OwnerID         string
	OwnerName       string
	OwnerEmail      string
	OwnerTitle      string
}

// CRMClient queries the CRM REST API. Authentication uses the OAuth
// password grant; the token and instance URL are cached until a request is
// rejected.
type CRMClient struct {
	cfg  CRMConfig
	http *http.Client

	mu          sync.Mutex
	token       string
	instanceURL string
}

// NewCRMClient creates a CRM client.
func NewCRMClient(cfg CRMConfig) *CRMClient {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v58.0"
	}
	return &CRMClient{
		cfg:  cfg,
		http: &http.Client{Timeout: httpTimeout},
	}
}

// LookupOpportunity resolves ref as an opportunity number first and as a
// CRM record id second. Returns (nil, nil) when neither matches.
func (c *CRMClient) LookupOpportunity(ctx context.Context, ref string) (*CRMOpportunity, error) {
	opp, err := c.queryOne(ctx, fmt.Sprintf("OpportunityNumber__c = '%s'", soqlEscape(ref)))
	if err != nil {
		return nil, err
	}
	if opp == nil {
		opp, err = c.queryOne(ctx, fmt.Sprintf("Id = '%s'", soqlEscape(ref)))
		if err != nil {
			return nil, err
		}
	}
	return opp, nil
}

const opportunityFields = "Id, OpportunityNumber__c, Name, AccountId, Account.Name, " +
	"Amount, ExpectedRevenue, CloseDate, IsClosed, StageName, Type, " +
	"OwnerId, Owner.Name, Owner.Email, Owner.Title"

func (c *CRMClient) queryOne(ctx context.Context, where string) (*CRMOpportunity, error) {
	soql := fmt.Sprintf("SELECT %s FROM Opportunity WHERE %s LIMIT 1", opportunityFields, where)

	var opp *CRMOpportunity
	operation := func() error {
		var err error
		opp, err = c.runQuery(ctx, soql)
		return err
	}
	if err := backoff.Retry(operation, newRetryBackoff(ctx)); err != nil {
		return nil, fmt.Errorf("query opportunity: %w", err)
	}
	return opp, nil
}

type queryResponse struct {
	TotalSize int `json:"totalSize"`
	Records   []struct {
		ID              string  `json:"Id"`
		Number          string  `json:"OpportunityNumber__c"`
		Name            string  `json:"Name"`
		AccountID       string  `json:"AccountId"`
		Amount          float64 `json:"Amount"`
		ExpectedRevenue float64 `json:"ExpectedRevenue"`
		CloseDate       string  `json:"CloseDate"`
		IsClosed        bool    `json:"IsClosed"`
		StageName       string  `json:"StageName"`
		Type            string  `json:"Type"`
		OwnerID         string  `json:"OwnerId"`
		Account         *struct {
			Name string `json:"Name"`
		} `json:"Account"`
		Owner *struct {
			Name  string `json:"Name"`
			Email string `json:"Email"`
			Title string `json:"Title"`
		} `json:"Owner"`
	} `json:"records"`
}

func (c *CRMClient) runQuery(ctx context.Context, soql string) (*CRMOpportunity, error) {
	token, instance, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/services/data/%s/query?q=%s",
		instance, c.cfg.APIVersion, url.QueryEscape(soql))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.expireSession()
		return nil, fmt.Errorf("crm session expired")
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("crm returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, backoff.Permanent(fmt.Errorf("crm returned %s: %s", resp.Status, strings.TrimSpace(string(body))))
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode crm response: %w", err))
	}
	if qr.TotalSize == 0 || len(qr.Records) == 0 {
		return nil, nil
	}

	rec := qr.Records[0]
	opp := &CRMOpportunity{
		ID:              rec.ID,
		Number:          rec.Number,
		Name:            rec.Name,
		AccountID:       rec.AccountID,
		Amount:          rec.Amount,
		ExpectedRevenue: rec.ExpectedRevenue,
		CloseDate:       rec.CloseDate,
		IsClosed:        rec.IsClosed,
		Stage:           rec.StageName,
		Type:            rec.Type,
		OwnerID:         rec.OwnerID,
	}
	if rec.Account != nil {
		opp.AccountName = rec.Account.Name
	}
	if rec.Owner != nil {
		opp.OwnerName = rec.Owner.Name
		opp.OwnerEmail = rec.Owner.Email
		opp.OwnerTitle = rec.Owner.Title
	}
	return opp, nil
}

// session returns a cached token, logging in when none is held.
func (c *CRMClient) session(ctx context.Context) (token, instance string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, c.instanceURL, nil
	}

	form := url.Values{
		"grant_type":    {"password"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"username":      {c.cfg.Username},
		"password":      {c.cfg.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.LoginURL, "/")+"/services/oauth2/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", "", backoff.Permanent(fmt.Errorf("crm login returned %s: %s", resp.Status, strings.TrimSpace(string(body))))
	}

	var auth struct {
		AccessToken string `json:"access_token"`
		InstanceURL string `json:"instance_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", "", backoff.Permanent(fmt.Errorf("decode crm login response: %w", err))
	}
	c.token = auth.AccessToken
	c.instanceURL = auth.InstanceURL
	return c.token, c.instanceURL, nil
}

func (c *CRMClient) expireSession() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// soqlEscape quotes the single-quote and backslash characters in a SOQL
// string literal.
func soqlEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
