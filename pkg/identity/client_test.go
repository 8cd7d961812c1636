package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openwaitlist/waitlist/pkg/config"
)

// keycloakStub fakes the subset of the Keycloak REST API the connector uses.
type keycloakStub struct {
	server *httptest.Server

	tokenRequests  atomic.Int64
	lastGrantType  atomic.Value
	failTokens     bool
	createStatus   int
	createdUserID  string
	existingUsers  []map[string]any
	passwordCalls  atomic.Int64
	lastSearchPath atomic.Value
}

func newKeycloakStub(t *testing.T) *keycloakStub {
	t.Helper()
	stub := &keycloakStub{createStatus: http.StatusCreated, createdUserID: "new-user-id"}

	mux := http.NewServeMux()
	mux.HandleFunc("/realms/", func(w http.ResponseWriter, r *http.Request) {
		stub.tokenRequests.Add(1)
		require.NoError(t, r.ParseForm())
		stub.lastGrantType.Store(r.PostFormValue("grant_type"))
		if stub.failTokens {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Token is not active"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "stub-access",
			"refresh_token": "stub-refresh",
			"expires_in":    300,
			"token_type":    "Bearer",
		})
	})
	mux.HandleFunc("/admin/realms/waitlist/users", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			if stub.createStatus == http.StatusCreated {
				w.Header().Set("Location", stub.server.URL+"/admin/realms/waitlist/users/"+stub.createdUserID)
			}
			w.WriteHeader(stub.createStatus)
			if stub.createStatus == http.StatusConflict {
				_, _ = fmt.Fprint(w, `{"errorMessage":"User exists with same username"}`)
			}
		case http.MethodGet:
			stub.lastSearchPath.Store(r.URL.RawQuery)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(stub.existingUsers)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/admin/realms/waitlist/users/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			stub.passwordCalls.Add(1)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *keycloakStub) connector(t *testing.T, mutate func(*config.Keycloak)) *Connector {
	t.Helper()
	cfg := config.Keycloak{
		BaseURL:        s.server.URL,
		Realm:          "waitlist",
		AdminRealm:     "master",
		ClientID:       "waitlist-portal",
		AdminUsername:  "admin",
		AdminPassword:  "admin",
		RequestTimeout: "5s",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewConnector(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	return c
}

func TestNewConnectorValidation(t *testing.T) {
	_, err := NewConnector(config.Keycloak{}, zap.NewNop().Sugar())
	assert.Error(t, err)

	_, err = NewConnector(config.Keycloak{BaseURL: "http://localhost:8080"}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestInitializeServiceAccount(t *testing.T) {
	stub := newKeycloakStub(t)
	c := stub.connector(t, func(k *config.Keycloak) { k.ClientSecret = "hunter2" })

	pair, ok, err := c.Initialize(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "stub-access", pair.AccessToken)
	assert.Equal(t, "stub-refresh", pair.RefreshToken)
	assert.Equal(t, "client_credentials", stub.lastGrantType.Load())
	assert.Equal(t, pair, c.CurrentPair())
}

func TestInitializeServiceAccountRejected(t *testing.T) {
	stub := newKeycloakStub(t)
	stub.failTokens = true
	c := stub.connector(t, func(k *config.Keycloak) { k.ClientSecret = "hunter2" })

	_, ok, err := c.Initialize(context.Background(), nil)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestInitializeResumesFromStoredRefreshToken(t *testing.T) {
	stub := newKeycloakStub(t)
	c := stub.connector(t, nil)

	pair, ok, err := c.Initialize(context.Background(), &TokenPair{RefreshToken: "stored"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "stub-access", pair.AccessToken)
	assert.Equal(t, "refresh_token", stub.lastGrantType.Load())
}

func TestInitializeExpiredResumeIsNegativeNotError(t *testing.T) {
	stub := newKeycloakStub(t)
	stub.failTokens = true
	c := stub.connector(t, nil)

	_, ok, err := c.Initialize(context.Background(), &TokenPair{RefreshToken: "expired"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInitializeWithoutCredentials(t *testing.T) {
	stub := newKeycloakStub(t)
	c := stub.connector(t, nil)

	_, ok, err := c.Initialize(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, stub.tokenRequests.Load())
}

func TestRefreshSkipsFreshToken(t *testing.T) {
	stub := newKeycloakStub(t)
	c := stub.connector(t, nil)
	c.pair = TokenPair{
		AccessToken:  "still-good",
		RefreshToken: "r",
		Expiry:       time.Now().Add(10 * time.Minute),
	}

	pair, renewed, err := c.Refresh(context.Background(), 70*time.Second)
	require.NoError(t, err)
	assert.False(t, renewed)
	assert.Equal(t, "still-good", pair.AccessToken)
	assert.Zero(t, stub.tokenRequests.Load())
}

func TestRefreshRenewsExpiringToken(t *testing.T) {
	stub := newKeycloakStub(t)
	c := stub.connector(t, nil)
	c.pair = TokenPair{
		AccessToken:  "old",
		RefreshToken: "r",
		Expiry:       time.Now().Add(30 * time.Second),
	}

	pair, renewed, err := c.Refresh(context.Background(), 70*time.Second)
	require.NoError(t, err)
	assert.True(t, renewed)
	assert.Equal(t, "stub-access", pair.AccessToken)
	assert.Equal(t, "refresh_token", stub.lastGrantType.Load())
}

func TestRefreshFallsBackToServiceAccount(t *testing.T) {
	stub := newKeycloakStub(t)
	c := stub.connector(t, func(k *config.Keycloak) { k.ClientSecret = "hunter2" })
	c.pair = TokenPair{AccessToken: "old", Expiry: time.Now().Add(-time.Minute)}

	pair, renewed, err := c.Refresh(context.Background(), 70*time.Second)
	require.NoError(t, err)
	assert.True(t, renewed)
	assert.Equal(t, "stub-access", pair.AccessToken)
	assert.Equal(t, "client_credentials", stub.lastGrantType.Load())
}

func TestCreateUser(t *testing.T) {
	stub := newKeycloakStub(t)
	c := stub.connector(t, nil)

	id, err := c.CreateUser(context.Background(), UserRecord{
		Username: "jdoe",
		Email:    "jdoe@example.com",
		Enabled:  true,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "new-user-id", id)
}

func TestCreateUserSetsPassword(t *testing.T) {
	stub := newKeycloakStub(t)
	c := stub.connector(t, nil)

	_, err := c.CreateUser(context.Background(), UserRecord{Username: "jdoe", Enabled: true}, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stub.passwordCalls.Load())
}

func TestCreateUserConflictResolvesExistingID(t *testing.T) {
	stub := newKeycloakStub(t)
	stub.createStatus = http.StatusConflict
	stub.existingUsers = []map[string]any{
		{"id": "existing-id", "username": "jdoe"},
	}
	c := stub.connector(t, nil)

	id, err := c.CreateUser(context.Background(), UserRecord{Username: "jdoe", Enabled: true}, "")
	require.ErrorIs(t, err, ErrUserExists)
	assert.Equal(t, "existing-id", id)
	// No password reset for an existing user
	assert.Zero(t, stub.passwordCalls.Load())
}

func TestListUsers(t *testing.T) {
	stub := newKeycloakStub(t)
	stub.existingUsers = []map[string]any{
		{"id": "u1", "username": "alice", "email": "alice@example.com", "enabled": true, "createdTimestamp": 1700000000000},
		{"id": "u2", "username": "bob", "firstName": "Bob", "lastName": "Builder"},
	}
	c := stub.connector(t, nil)

	records, err := c.ListUsers(context.Background(), "", 50)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "alice", records[0].Username)
	assert.Equal(t, "alice@example.com", records[0].Email)
	assert.True(t, records[0].Enabled)
	assert.Equal(t, "Bob Builder", records[1].FullName())
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "", UserRecord{}.FullName())
	assert.Equal(t, "Ada", UserRecord{FirstName: "Ada"}.FullName())
	assert.Equal(t, "Lovelace", UserRecord{LastName: "Lovelace"}.FullName())
	assert.Equal(t, "Ada Lovelace", UserRecord{FirstName: "Ada", LastName: "Lovelace"}.FullName())
}
