package whois

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/whois", r.URL.Path)
		assert.Equal(t, "example.com", r.URL.Query().Get("domain"))
		assert.Equal(t, "Token=secret", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{
			"domain": "example.com",
			"registrar": "Example Registrar",
			"creation_date": "2015-08-14",
			"expiration_date": "2027-08-14"
		}`))
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL))
	record, err := c.Lookup(context.Background(), "example.com")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "example.com", record.Domain)
	assert.Equal(t, "Example Registrar", record.Registrar)
	assert.Equal(t, "2015-08-14", record.RegistrationDate)
}

func TestLookup_NotFoundIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL))
	record, err := c.Lookup(context.Background(), "no-such-domain.example")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestLookup_FillsMissingDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"registrar": "R"}`))
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL))
	record, err := c.Lookup(context.Background(), "example.org")
	require.NoError(t, err)
	assert.Equal(t, "example.org", record.Domain)
}

func TestLookup_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL))
	_, err := c.Lookup(context.Background(), "example.com")
	assert.Error(t, err)
}

func TestDomainRecord_AgeYears(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		date string
		want int
	}{
		{"date only", "2018-06-01", 7},
		{"rfc3339", "2018-06-01T12:00:00Z", 7},
		{"registered this year", "2026-01-15", 0},
		{"missing", "", 0},
		{"unparseable", "sometime in 2018", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := DomainRecord{RegistrationDate: tc.date}
			assert.Equal(t, tc.want, r.AgeYears(now))
		})
	}
}
