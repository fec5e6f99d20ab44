package target

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"resty.dev/v3"

	"github.com/aarelaponin/joget-deployment-toolkit/internal/artifact"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/ctxlog"
)

// Config carries everything the Joget client needs to talk to one instance.
type Config struct {
	BaseURL    string
	APIID      string
	APIKey     string
	AppID      string
	AppVersion string
	Timeout    time.Duration
	VerifySSL  bool
}

// JogetStore is the REST implementation of Store against a Joget DX
// instance. All calls are scoped to the application named in the config.
type JogetStore struct {
	client     *resty.Client
	appID      string
	appVersion string
}

// NewJogetStore builds a Store from an instance config.
func NewJogetStore(cfg Config) *JogetStore {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("api_id", cfg.APIID).
		SetHeader("api_key", cfg.APIKey).
		SetHeader("Accept", "application/json")
	if !cfg.VerifySSL {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	version := cfg.AppVersion
	if version == "" {
		version = "1"
	}
	return &JogetStore{client: client, appID: cfg.AppID, appVersion: version}
}

// Close releases the underlying transport.
func (s *JogetStore) Close() error {
	return s.client.Close()
}

// formInfo is one row of the console form listing.
type formInfo struct {
	FormID    string `json:"formId"`
	Name      string `json:"name"`
	TableName string `json:"tableName"`
}

type formListPage struct {
	Data  []formInfo `json:"data"`
	Total int        `json:"total"`
}

type appInfo struct {
	ID string `json:"id"`
}

type appListPage struct {
	Data []appInfo `json:"data"`
}

// Ping verifies the instance answers at all. It hits the public username
// endpoint, which requires no application context.
func (s *JogetStore) Ping(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).Get("/web/json/workflow/currentUsername")
	if err != nil {
		return fmt.Errorf("target unreachable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("target responded with HTTP %d", resp.StatusCode())
	}
	return nil
}

// ValidateCredentials confirms the API key is accepted by an authenticated
// console endpoint.
func (s *JogetStore) ValidateCredentials(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).Get("/web/json/console/app/list")
	if err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}
	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		return fmt.Errorf("credentials rejected (HTTP %d)", resp.StatusCode())
	}
	if resp.IsError() {
		return fmt.Errorf("credential check failed: HTTP %d", resp.StatusCode())
	}
	return nil
}

// AppExists reports whether the configured application is present on the
// instance.
func (s *JogetStore) AppExists(ctx context.Context) (bool, error) {
	var page appListPage
	resp, err := s.client.R().SetContext(ctx).SetResult(&page).Get("/web/json/console/app/list")
	if err != nil {
		return false, fmt.Errorf("listing applications: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("listing applications: HTTP %d", resp.StatusCode())
	}
	for _, app := range page.Data {
		if app.ID == s.appID {
			return true, nil
		}
	}
	return false, nil
}

// Snapshot lists every form in the application with its table name.
func (s *JogetStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	logger := ctxlog.FromContext(ctx)

	var page formListPage
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"start": "0", "rows": "1000"}).
		SetResult(&page).
		Get(fmt.Sprintf("/web/json/console/app/%s/%s/forms", s.appID, s.appVersion))
	if err != nil {
		return nil, fmt.Errorf("fetching target snapshot: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetching target snapshot: HTTP %d", resp.StatusCode())
	}

	tables := make(map[string]string, len(page.Data))
	for _, f := range page.Data {
		tables[f.FormID] = f.TableName
	}
	logger.Debug("target snapshot fetched", "app", s.appID, "forms", len(tables))
	return NewSnapshot(s.appID, tables), nil
}

// Exists reports whether one form is present in the application.
func (s *JogetStore) Exists(ctx context.Context, id string) (bool, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/web/json/console/app/%s/%s/form/%s", s.appID, s.appVersion, id))
	if err != nil {
		return false, fmt.Errorf("checking form %s: %w", id, err)
	}
	if resp.StatusCode() == 404 {
		return false, nil
	}
	if resp.IsError() {
		return false, fmt.Errorf("checking form %s: HTTP %d", id, resp.StatusCode())
	}
	return true, nil
}

// Create pushes a new form definition.
func (s *JogetStore) Create(ctx context.Context, a artifact.Artifact) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"formId":    a.ID,
			"formName":  a.Name,
			"tableName": a.DeclaredTable,
			"json":      a.Definition,
		}).
		Post(fmt.Sprintf("/web/json/console/app/%s/%s/form/create", s.appID, s.appVersion))
	if err != nil {
		return fmt.Errorf("creating form %s: %w", a.ID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("creating form %s: HTTP %d: %s", a.ID, resp.StatusCode(), resp.String())
	}
	return nil
}

// Update replaces an existing form definition.
func (s *JogetStore) Update(ctx context.Context, a artifact.Artifact) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"json": a.Definition}).
		Post(fmt.Sprintf("/web/json/console/app/%s/%s/form/%s/update", s.appID, s.appVersion, a.ID))
	if err != nil {
		return fmt.Errorf("updating form %s: %w", a.ID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("updating form %s: HTTP %d: %s", a.ID, resp.StatusCode(), resp.String())
	}
	return nil
}
