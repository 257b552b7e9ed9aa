package southernco

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// unsignedJWT builds a syntactically valid token with the given expiry.
// The client reads claims without verifying, so no real key is needed.
func unsignedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	enc := func(v any) string {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshalling claims: %v", err)
		}
		return base64.RawURLEncoding.EncodeToString(raw)
	}
	header := enc(map[string]string{"alg": "HS256", "typ": "JWT"})
	claims := enc(map[string]any{"exp": exp.Unix(), "sub": "user"})
	return header + "." + claims + ".signature"
}

func TestClient_AuthenticateReadsExpiry(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var creds map[string]string
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Fatalf("decoding credentials: %v", err)
		}
		if creds["username"] != "user" || creds["password"] != "pass" {
			t.Errorf("credentials = %v", creds)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": unsignedJWT(t, exp)})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pass")
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !c.TokenExpiry().Equal(exp) {
		t.Errorf("TokenExpiry() = %v, want %v", c.TokenExpiry(), exp)
	}
}

func TestClient_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "wrong")
	if err := c.Authenticate(context.Background()); !errors.Is(err, ErrAuth) {
		t.Errorf("Authenticate() error = %v, want ErrAuth", err)
	}
}

func TestClient_EnsureAuthRenewsNearExpiry(t *testing.T) {
	var logins atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/login" {
			logins.Add(1)
			// Expiry inside the reauth margin forces a renewal next time
			_ = json.NewEncoder(w).Encode(map[string]string{
				"token": unsignedJWT(t, time.Now().Add(reauthMargin/2)),
			})
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pass")
	ctx := context.Background()

	if err := c.EnsureAuth(ctx); err != nil {
		t.Fatalf("EnsureAuth() error = %v", err)
	}
	if err := c.EnsureAuth(ctx); err != nil {
		t.Fatalf("second EnsureAuth() error = %v", err)
	}
	if logins.Load() != 2 {
		t.Errorf("logged in %d times, want 2 (near-expiry token renewed)", logins.Load())
	}
}

func TestClient_EnsureAuthKeepsFreshToken(t *testing.T) {
	var logins atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/login" {
			logins.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"token": unsignedJWT(t, time.Now().Add(4*time.Hour)),
			})
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pass")
	ctx := context.Background()

	for n := 0; n < 3; n++ {
		if err := c.EnsureAuth(ctx); err != nil {
			t.Fatalf("EnsureAuth() #%d error = %v", n, err)
		}
	}
	if logins.Load() != 1 {
		t.Errorf("logged in %d times, want 1", logins.Load())
	}
}

func TestClient_GetHourlyDataDecodesNulls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer " {
			t.Error("request missing bearer token")
		}
		fmt.Fprint(w, `[
			{"time":"2026-08-01T10:00:00Z","usage":1.5,"cost":0.21,"temp":88},
			{"time":null,"usage":null,"cost":null,"temp":null}
		]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pass")
	c.token = "tok"

	records, err := c.GetHourlyData(context.Background(), "111", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("GetHourlyData() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	if records[0].Usage == nil || *records[0].Usage != 1.5 {
		t.Errorf("first record = %+v", records[0])
	}
	if records[1].Time != nil || records[1].Usage != nil {
		t.Errorf("null fields decoded as values: %+v", records[1])
	}
}

func TestClient_GetMonthData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/accounts/111/month" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"dollarsToDate":55.2,"totalKWH":412,"averageDailyUsage":13.7,
			"averageDailyCost":1.84,"projectedUsageLow":700,"projectedUsageHigh":820,
			"projectedBillAmountLow":92,"projectedBillAmountHigh":109}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "user", "pass")
	c.token = "tok"

	usage, err := c.GetMonthData(context.Background(), "111")
	if err != nil {
		t.Fatalf("GetMonthData() error = %v", err)
	}
	if usage.DollarsToDate != 55.2 || usage.ProjectedBillAmountHigh != 109 {
		t.Errorf("usage = %+v", usage)
	}
}
