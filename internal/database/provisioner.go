package database

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docchat-platform/internal/config"
	"docchat-platform/internal/logger"
	"docchat-platform/models"
	"docchat-platform/utils"
)

// NeonAPI is the client for a Neon-compatible database provisioning
// service: project creation plus connection endpoint lookup.
type NeonAPI struct {
	baseURL    string
	apiKey     string
	roleName   string
	dbName     string
	httpClient *http.Client
}

func NewNeonAPI(cfg *config.Config) *NeonAPI {
	return &NeonAPI{
		baseURL:  cfg.ProvisionerBaseURL,
		apiKey:   cfg.ProvisionerAPIKey,
		roleName: cfg.ProvisionerRoleName,
		dbName:   cfg.ProvisionerDBName,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (n *NeonAPI) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, n.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provisioning API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("provisioning API %s %s returned status %d: %s", method, path, resp.StatusCode, payload)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateProject provisions a new database instance. The response must
// carry a connection endpoint or the whole login attempt fails.
func (n *NeonAPI) CreateProject(ctx context.Context) (string, string, error) {
	var result struct {
		Project struct {
			ID string `json:"id"`
		} `json:"project"`
		ConnectionURIs []struct {
			ConnectionURI string `json:"connection_uri"`
		} `json:"connection_uris"`
	}

	if err := n.do(ctx, http.MethodPost, "/projects", strings.NewReader(`{"project":{}}`), &result); err != nil {
		return "", "", fmt.Errorf("create project: %w", err)
	}

	if result.Project.ID == "" {
		return "", "", fmt.Errorf("create project: response missing project id")
	}
	if len(result.ConnectionURIs) == 0 || result.ConnectionURIs[0].ConnectionURI == "" {
		return "", "", fmt.Errorf("create project: response missing connection endpoint")
	}

	return result.Project.ID, result.ConnectionURIs[0].ConnectionURI, nil
}

// ConnectionURI re-derives the endpoint for an existing instance. Never
// cached; callers fetch fresh on every ingestion or chat request.
func (n *NeonAPI) ConnectionURI(ctx context.Context, projectID string) (string, error) {
	var result struct {
		URI string `json:"uri"`
	}

	path := fmt.Sprintf("/projects/%s/connection_uri?role_name=%s&database_name=%s",
		url.PathEscape(projectID), url.QueryEscape(n.roleName), url.QueryEscape(n.dbName))
	if err := n.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return "", fmt.Errorf("connection uri: %w", err)
	}

	if result.URI == "" {
		return "", fmt.Errorf("connection uri: empty endpoint for project %s", projectID)
	}
	return result.URI, nil
}

// ProvisionState names the steps of first-login tenant provisioning so
// partial failures are inspectable.
type ProvisionState string

const (
	StateNoAccount             ProvisionState = "NoAccount"
	StateAccountNoDB           ProvisionState = "AccountNoDB"
	StateDBCreatedUnconfigured ProvisionState = "DBCreatedUnconfigured"
	StateDBReady               ProvisionState = "DBReady"
	StateBound                 ProvisionState = "Bound"
)

// ProvisionError wraps a failure with the state the machine was in when
// it happened. A failure after DBCreatedUnconfigured can leave an
// orphaned external instance; cmd/reconcile picks those up.
type ProvisionError struct {
	State ProvisionState
	Err   error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning failed in state %s: %v", e.State, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Provisioner resolves an external identity into an account with a
// bound, schema-ready tenant database, creating both lazily on first
// login.
type Provisioner struct {
	accounts   AccountStore
	tenants    TenantDBStore
	api        ProvisioningAPI
	openStore  ChunkStoreOpener
	dimensions int
}

func NewProvisioner(accounts AccountStore, tenants TenantDBStore, api ProvisioningAPI, openStore ChunkStoreOpener, dimensions int) *Provisioner {
	return &Provisioner{
		accounts:   accounts,
		tenants:    tenants,
		api:        api,
		openStore:  openStore,
		dimensions: dimensions,
	}
}

// ResolveIdentity returns the account and tenant database for a
// verified profile, running the provisioning state machine when either
// is missing. Any failure aborts the sign-in.
func (p *Provisioner) ResolveIdentity(ctx context.Context, profile models.Profile) (*models.Account, *models.TenantDatabase, error) {
	account, tenant, err := p.accounts.GetByEmail(ctx, profile.Email)
	if err != nil {
		return nil, nil, &ProvisionError{State: StateNoAccount, Err: err}
	}
	if account != nil && tenant != nil {
		return account, tenant, nil
	}

	state := StateNoAccount
	if account == nil {
		account, err = p.accounts.Upsert(ctx, profile, utils.GenerateID(utils.PrefixAccount))
		if err != nil {
			return nil, nil, &ProvisionError{State: state, Err: err}
		}
	}
	state = StateAccountNoDB
	logger.Debug("Provisioning tenant database", "account", account.AccountID, "state", string(state))

	projectID, connectionURI, err := p.api.CreateProject(ctx)
	if err != nil {
		return nil, nil, &ProvisionError{State: state, Err: err}
	}
	state = StateDBCreatedUnconfigured
	logger.Debug("Tenant instance created", "account", account.AccountID, "project", projectID, "state", string(state))

	store, err := p.openStore(ctx, connectionURI, p.dimensions)
	if err != nil {
		return nil, nil, &ProvisionError{State: state, Err: err}
	}
	defer store.Close(ctx)

	if err := store.EnsureSchema(ctx); err != nil {
		return nil, nil, &ProvisionError{State: state, Err: err}
	}
	state = StateDBReady

	tenant, err = p.tenants.Bind(ctx, account.ID, projectID)
	if err != nil {
		// ErrTenantBindingRace propagates as-is: the caller retries and
		// the winner's binding is used.
		return nil, nil, &ProvisionError{State: state, Err: err}
	}
	state = StateBound
	logger.Info("Tenant database bound", "account", account.AccountID, "project", projectID, "state", string(state))

	return account, tenant, nil
}
