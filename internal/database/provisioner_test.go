package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docchat-platform/internal/config"
	"docchat-platform/models"
)

type fakeAccountStore struct {
	byEmail map[string]*models.Account
	tenants map[int64]*models.TenantDatabase
	nextID  int64
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{
		byEmail: make(map[string]*models.Account),
		tenants: make(map[int64]*models.TenantDatabase),
		nextID:  1,
	}
}

func (f *fakeAccountStore) GetByEmail(_ context.Context, email string) (*models.Account, *models.TenantDatabase, error) {
	account, ok := f.byEmail[email]
	if !ok {
		return nil, nil, nil
	}
	return account, f.tenants[account.ID], nil
}

func (f *fakeAccountStore) Upsert(_ context.Context, profile models.Profile, accountID string) (*models.Account, error) {
	if existing, ok := f.byEmail[profile.Email]; ok {
		return existing, nil
	}
	account := &models.Account{
		ID:        f.nextID,
		AccountID: accountID,
		Name:      profile.Name,
		Email:     profile.Email,
	}
	f.nextID++
	f.byEmail[profile.Email] = account
	return account, nil
}

type fakeTenantStore struct {
	accounts *fakeAccountStore
	bindErr  error
	bound    []string
}

func (f *fakeTenantStore) Bind(_ context.Context, accountID int64, vectorDBID string) (*models.TenantDatabase, error) {
	if f.bindErr != nil {
		return nil, f.bindErr
	}
	tenant := &models.TenantDatabase{ID: accountID, VectorDBID: vectorDBID, AccountID: accountID}
	f.accounts.tenants[accountID] = tenant
	f.bound = append(f.bound, vectorDBID)
	return tenant, nil
}

func (f *fakeTenantStore) GetByAccount(_ context.Context, accountID int64) (*models.TenantDatabase, error) {
	return f.accounts.tenants[accountID], nil
}

func (f *fakeTenantStore) List(_ context.Context) ([]models.TenantDatabase, error) {
	var out []models.TenantDatabase
	for _, t := range f.accounts.tenants {
		out = append(out, *t)
	}
	return out, nil
}

type fakeChunkStore struct {
	schemaErr     error
	schemaEnsured bool
	inserted      []models.EmbeddingChunk
	searches      []string
	closed        bool
}

func (f *fakeChunkStore) EnsureSchema(_ context.Context) error {
	if f.schemaErr != nil {
		return f.schemaErr
	}
	f.schemaEnsured = true
	return nil
}

func (f *fakeChunkStore) InsertChunks(_ context.Context, chunks []models.EmbeddingChunk) error {
	f.inserted = append(f.inserted, chunks...)
	return nil
}

func (f *fakeChunkStore) SimilaritySearch(_ context.Context, _ []float32, documentID string, _ int) ([]models.ChunkMatch, error) {
	f.searches = append(f.searches, documentID)
	return nil, nil
}

func (f *fakeChunkStore) Close(_ context.Context) error {
	f.closed = true
	return nil
}

// fakeNeon serves the provider endpoints the provisioner talks to.
func fakeNeon(t *testing.T, failCreate bool) (*httptest.Server, *int) {
	t.Helper()
	var createCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/projects":
			createCalls++
			if failCreate {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"message":"capacity"}`)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"project": map[string]string{"id": "proj-new-1"},
				"connection_uris": []map[string]string{
					{"connection_uri": "postgres://owner:pw@host/neondb"},
				},
			})
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/connection_uri"):
			if r.URL.Query().Get("role_name") != "neondb_owner" || r.URL.Query().Get("database_name") != "neondb" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"uri": "postgres://owner:pw@host/neondb"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &createCalls
}

func neonConfig(baseURL string) *config.Config {
	return &config.Config{
		ProvisionerBaseURL:  baseURL,
		ProvisionerAPIKey:   "test-key",
		ProvisionerRoleName: "neondb_owner",
		ProvisionerDBName:   "neondb",
	}
}

func TestResolveIdentityFirstLoginProvisions(t *testing.T) {
	srv, createCalls := fakeNeon(t, false)
	api := NewNeonAPI(neonConfig(srv.URL))

	accounts := newFakeAccountStore()
	tenants := &fakeTenantStore{accounts: accounts}
	chunkStore := &fakeChunkStore{}
	opener := func(_ context.Context, uri string, _ int) (ChunkStore, error) {
		if uri != "postgres://owner:pw@host/neondb" {
			t.Fatalf("opened store with wrong uri %q", uri)
		}
		return chunkStore, nil
	}

	p := NewProvisioner(accounts, tenants, api, opener, 768)
	profile := models.Profile{Email: "new@example.com", Name: "New Person"}

	account, tenant, err := p.ResolveIdentity(context.Background(), profile)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.HasPrefix(account.AccountID, "usr_") {
		t.Fatalf("expected usr_ public id, got %q", account.AccountID)
	}
	if tenant.VectorDBID != "proj-new-1" {
		t.Fatalf("expected binding to the created project, got %q", tenant.VectorDBID)
	}
	if *createCalls != 1 {
		t.Fatalf("expected exactly one create call, got %d", *createCalls)
	}
	if !chunkStore.schemaEnsured {
		t.Fatalf("embedding schema was not applied before binding")
	}
	if !chunkStore.closed {
		t.Fatalf("tenant connection was not closed")
	}
}

func TestResolveIdentityExistingAccountSkipsProvisioning(t *testing.T) {
	srv, createCalls := fakeNeon(t, false)
	api := NewNeonAPI(neonConfig(srv.URL))

	accounts := newFakeAccountStore()
	tenants := &fakeTenantStore{accounts: accounts}
	profile := models.Profile{Email: "old@example.com", Name: "Old Person"}

	p := NewProvisioner(accounts, tenants, api, func(_ context.Context, _ string, _ int) (ChunkStore, error) {
		return &fakeChunkStore{}, nil
	}, 768)

	first, firstTenant, err := p.ResolveIdentity(context.Background(), profile)
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, secondTenant, err := p.ResolveIdentity(context.Background(), profile)
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if first.AccountID != second.AccountID {
		t.Fatalf("second login resolved a different account")
	}
	if firstTenant.VectorDBID != secondTenant.VectorDBID {
		t.Fatalf("second login resolved a different tenant database")
	}
	if *createCalls != 1 {
		t.Fatalf("expected no second provider call, got %d creates", *createCalls)
	}
}

func TestResolveIdentityProviderFailure(t *testing.T) {
	srv, _ := fakeNeon(t, true)
	api := NewNeonAPI(neonConfig(srv.URL))

	accounts := newFakeAccountStore()
	tenants := &fakeTenantStore{accounts: accounts}

	p := NewProvisioner(accounts, tenants, api, func(_ context.Context, _ string, _ int) (ChunkStore, error) {
		return &fakeChunkStore{}, nil
	}, 768)

	_, _, err := p.ResolveIdentity(context.Background(), models.Profile{Email: "x@example.com"})
	if err == nil {
		t.Fatalf("expected provisioning failure")
	}

	var provErr *ProvisionError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProvisionError, got %T", err)
	}
	if provErr.State != StateAccountNoDB {
		t.Fatalf("expected failure in AccountNoDB, got %s", provErr.State)
	}
}

func TestResolveIdentitySchemaFailureAfterCreate(t *testing.T) {
	srv, _ := fakeNeon(t, false)
	api := NewNeonAPI(neonConfig(srv.URL))

	accounts := newFakeAccountStore()
	tenants := &fakeTenantStore{accounts: accounts}
	chunkStore := &fakeChunkStore{schemaErr: errors.New("extension missing")}

	p := NewProvisioner(accounts, tenants, api, func(_ context.Context, _ string, _ int) (ChunkStore, error) {
		return chunkStore, nil
	}, 768)

	_, _, err := p.ResolveIdentity(context.Background(), models.Profile{Email: "y@example.com"})

	var provErr *ProvisionError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProvisionError, got %v", err)
	}
	// The external instance exists but its schema never applied; this is
	// the state cmd/reconcile repairs.
	if provErr.State != StateDBCreatedUnconfigured {
		t.Fatalf("expected failure in DBCreatedUnconfigured, got %s", provErr.State)
	}
	if len(tenants.bound) != 0 {
		t.Fatalf("binding must not happen before the schema is ready")
	}
}

func TestResolveIdentityBindingRaceIsRetryable(t *testing.T) {
	srv, _ := fakeNeon(t, false)
	api := NewNeonAPI(neonConfig(srv.URL))

	accounts := newFakeAccountStore()
	tenants := &fakeTenantStore{accounts: accounts, bindErr: ErrTenantBindingRace}

	p := NewProvisioner(accounts, tenants, api, func(_ context.Context, _ string, _ int) (ChunkStore, error) {
		return &fakeChunkStore{}, nil
	}, 768)

	_, _, err := p.ResolveIdentity(context.Background(), models.Profile{Email: "z@example.com"})
	if !errors.Is(err, ErrTenantBindingRace) {
		t.Fatalf("expected the binding race to surface, got %v", err)
	}

	// The race comes back wrapped in a ProvisionError, so callers that
	// branch on the error type must test for the race before the
	// generic provisioning failure.
	var provErr *ProvisionError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected the race wrapped in a ProvisionError, got %T", err)
	}
	if provErr.State != StateDBReady {
		t.Fatalf("expected the race in DBReady, got %s", provErr.State)
	}
}

func TestNeonAPIConnectionURI(t *testing.T) {
	srv, _ := fakeNeon(t, false)
	api := NewNeonAPI(neonConfig(srv.URL))

	uri, err := api.ConnectionURI(context.Background(), "proj-new-1")
	if err != nil {
		t.Fatalf("connection uri: %v", err)
	}
	if uri != "postgres://owner:pw@host/neondb" {
		t.Fatalf("unexpected uri %q", uri)
	}
}
