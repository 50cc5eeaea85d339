package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meltforce/gymdesk/internal/auth"
	"github.com/meltforce/gymdesk/internal/models"
)

func okHandler(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

// TestAuthenticate verifies missing, invalid and valid bearer tokens.
func TestAuthenticate(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	good, err := v.Issue(auth.Identity{UserID: "u1", TenantID: "t1", Role: models.RoleCoach}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	forged, _ := auth.NewVerifier("other").Issue(auth.Identity{UserID: "u1", TenantID: "t1", Role: models.RoleAdmin}, time.Hour)

	var got auth.Identity
	h := Authenticate(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + good, http.StatusUnauthorized},
		{"forged", "Bearer " + forged, http.StatusUnauthorized},
		{"valid", "Bearer " + good, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
	if got.UserID != "u1" || got.Role != models.RoleCoach {
		t.Errorf("identity = %+v", got)
	}
}

// TestRequireRole verifies unauthenticated and under-privileged callers are rejected.
func TestRequireRole(t *testing.T) {
	h := RequireRole(models.RoleAdmin)(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no identity: status = %d, want 401", rec.Code)
	}

	for role, want := range map[models.Role]int{
		models.RoleAdmin:   http.StatusOK,
		models.RoleCoach:   http.StatusForbidden,
		models.RoleAthlete: http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "u", TenantID: "t", Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: status = %d, want %d", role, rec.Code, want)
		}
	}
}

// TestRequestLoggingCapturesStatus verifies the wrapped status reaches the log.
func TestRequestLoggingCapturesStatus(t *testing.T) {
	var sw *statusWriter
	h := RequestLogging(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw = w.(*statusWriter)
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if sw == nil || sw.status != http.StatusTeapot {
		t.Errorf("captured status = %v, want 418", sw)
	}
}

// TestCORSPreflight verifies configured origins are allowed and others are not.
func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(http.HandlerFunc(okHandler))

	for origin, allowed := range map[string]bool{
		"https://app.example.com":  true,
		"https://evil.example.com": false,
	} {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/routines", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		got := rec.Header().Get("Access-Control-Allow-Origin") == origin
		if got != allowed {
			t.Errorf("%s: allowed = %v, want %v", origin, got, allowed)
		}
	}
}
