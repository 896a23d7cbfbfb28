package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/romariotrain/holograma/internal/media/models"
)

func TestIssueAndAuthenticate(t *testing.T) {
	a := New("secret", "holograma", time.Hour)

	token, err := a.Issue(models.Principal{UID: "u1", Email: "a@b.c", Role: models.RoleAdmin})
	require.NoError(t, err)

	p, err := a.Authenticate(token)
	require.NoError(t, err)
	require.Equal(t, models.Principal{UID: "u1", Email: "a@b.c", Role: models.RoleAdmin}, p)
	require.True(t, p.IsAdmin())
}

func TestAuthenticate_Rejects(t *testing.T) {
	a := New("secret", "holograma", time.Hour)
	good, err := a.Issue(models.Principal{UID: "u1", Role: models.RoleReader})
	require.NoError(t, err)

	expired := New("secret", "holograma", time.Hour)
	expired.clock = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue(models.Principal{UID: "u1"})
	require.NoError(t, err)

	otherIssuer, err := New("secret", "someone-else", time.Hour).Issue(models.Principal{UID: "u1"})
	require.NoError(t, err)

	otherKey, err := New("other", "holograma", time.Hour).Issue(models.Principal{UID: "u1"})
	require.NoError(t, err)

	noSubject, err := a.Issue(models.Principal{})
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"tampered":     good + "x",
		"expired":      old,
		"wrong issuer": otherIssuer,
		"wrong key":    otherKey,
		"no subject":   noSubject,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Authenticate(token)
			require.ErrorIs(t, err, models.ErrUnauthorized)
		})
	}
}

func TestAuthenticate_UnknownRoleIsReader(t *testing.T) {
	a := New("secret", "holograma", time.Hour)
	token, err := a.Issue(models.Principal{UID: "u1", Role: "superuser"})
	require.NoError(t, err)

	p, err := a.Authenticate(token)
	require.NoError(t, err)
	require.Equal(t, models.RoleReader, p.Role)
}

func TestMiddleware(t *testing.T) {
	a := New("secret", "holograma", time.Hour)
	token, err := a.Issue(models.Principal{UID: "u9", Role: models.RoleAdmin})
	require.NoError(t, err)

	var seen models.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		require.True(t, ok)
		seen = p
		w.WriteHeader(http.StatusNoContent)
	})
	var gotErr error
	onError := func(w http.ResponseWriter, err error) {
		gotErr = err
		w.WriteHeader(http.StatusUnauthorized)
	}
	h := a.Middleware(onError)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "u9", seen.UID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.True(t, errors.Is(gotErr, models.ErrUnauthorized))
	require.ErrorIs(t, gotErr, errNoToken)
}
