package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sellforge/sellforge/internal/auth"
	"github.com/sellforge/sellforge/internal/errs"
	"github.com/sellforge/sellforge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLicenseStore struct {
	licenses map[string]*models.License
}

func (s *fakeLicenseStore) GetLicenseByKey(_ context.Context, key string) (*models.License, error) {
	l, ok := s.licenses[key]
	if !ok {
		return nil, errs.NotFoundf("license %s not found", key)
	}
	return l, nil
}

func (s *fakeLicenseStore) ActivateLicense(_ context.Context, key string, at time.Time) (*models.License, error) {
	l, ok := s.licenses[key]
	if !ok {
		return nil, errs.NotFoundf("license %s not found", key)
	}
	if l.Expired(at) {
		return nil, errs.Expiredf("license %s expired", key)
	}
	if l.Exhausted() {
		return nil, errs.Conflictf("license %s has no activations left", key)
	}
	l.ActivationsUsed++
	return l, nil
}

func licensesTestRouter(store *fakeLicenseStore, now time.Time) *gin.Engine {
	h := NewLicensesHandler(store, zerolog.Nop())
	h.now = func() time.Time { return now }
	engine := newTestRouter()
	h.RegisterRoutes(&engine.RouterGroup)
	return engine
}

func TestActivateLicense(t *testing.T) {
	key := auth.GenerateLicenseKey()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeLicenseStore{licenses: map[string]*models.License{
		key: {ID: 1, PurchaseID: 10, LicenseKey: key, ActivationsAllowed: 1},
	}}
	engine := licensesTestRouter(store, now)

	w := doJSON(t, engine, http.MethodPost, "/licenses/activate", gin.H{"license_key": key})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, store.licenses[key].ActivationsUsed)

	// Second activation exceeds the allowance.
	w = doJSON(t, engine, http.MethodPost, "/licenses/activate", gin.H{"license_key": key})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, 1, store.licenses[key].ActivationsUsed)
}

func TestActivateLicenseRejectsMalformedKey(t *testing.T) {
	engine := licensesTestRouter(&fakeLicenseStore{licenses: map[string]*models.License{}}, time.Now())

	for _, key := range []string{"", "not-a-key", "1234"} {
		w := doJSON(t, engine, http.MethodPost, "/licenses/activate", gin.H{"license_key": key})
		assert.Equal(t, http.StatusBadRequest, w.Code, key)
	}
}

func TestActivateLicenseUnknownAndExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	key := auth.GenerateLicenseKey()
	store := &fakeLicenseStore{licenses: map[string]*models.License{
		key: {ID: 1, LicenseKey: key, ActivationsAllowed: 1, ExpiresAt: &past},
	}}
	engine := licensesTestRouter(store, now)

	w := doJSON(t, engine, http.MethodPost, "/licenses/activate", gin.H{"license_key": auth.GenerateLicenseKey()})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, engine, http.MethodPost, "/licenses/activate", gin.H{"license_key": key})
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Zero(t, store.licenses[key].ActivationsUsed)
}

func TestValidateLicense(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	key := auth.GenerateLicenseKey()
	store := &fakeLicenseStore{licenses: map[string]*models.License{
		key: {ID: 1, LicenseKey: key, ActivationsAllowed: 2, ActivationsUsed: 1},
	}}
	engine := licensesTestRouter(store, now)

	w := doJSON(t, engine, http.MethodPost, "/licenses/validate", gin.H{"license_key": key})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Valid bool `json:"valid"`
	}
	decodeBody(t, w, &resp)
	assert.True(t, resp.Valid)
	assert.Equal(t, 1, store.licenses[key].ActivationsUsed, "validation must not consume an activation")

	store.licenses[key].ActivationsUsed = 2
	w = doJSON(t, engine, http.MethodPost, "/licenses/validate", gin.H{"license_key": key})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &resp)
	assert.False(t, resp.Valid)
}
