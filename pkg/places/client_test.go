package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_SendsRunInputAndParsesItems(t *testing.T) {
	var gotPath string
	var gotInput runInput

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "secret-token", r.URL.Query().Get("token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotInput))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[
			{"title":"Joe's Plumbing","totalScore":4.4,"reviewsCount":120},
			{"name":"Pipe Masters","website":"https://pipemasters.example"}
		]`))
	}))
	defer srv.Close()

	c := NewClient("secret-token", WithBaseURL(srv.URL), WithRateLimit(1000))

	items, err := c.Search(context.Background(), "plumbers in Austin TX", WithMaxResults(25))
	require.NoError(t, err)

	assert.Equal(t, "/v2/acts/"+DefaultActor+"/run-sync-get-dataset-items", gotPath)
	assert.Equal(t, []string{"plumbers in Austin TX"}, gotInput.SearchStringsArray)
	assert.Equal(t, 25, gotInput.MaxCrawledPlaces)
	assert.Equal(t, "en", gotInput.Language)

	require.Len(t, items, 2)
	assert.Equal(t, "Joe's Plumbing", items[0].Title)
	assert.Equal(t, 4.4, *items[0].TotalScore)
	assert.Equal(t, 120, *items[0].ReviewsCount)
	assert.Equal(t, "Pipe Masters", items[1].Name)
}

func TestSearch_AcceptsReplayedRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// 200 means the provider replayed a recent identical run.
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient("t", WithBaseURL(srv.URL), WithRateLimit(1000))
	items, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSearch_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "actor not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("t", WithBaseURL(srv.URL), WithRateLimit(1000))
	_, err := c.Search(context.Background(), "q")
	assert.Error(t, err)
}

func TestSearch_CustomActor(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient("t", WithBaseURL(srv.URL), WithActor("custom~actor"), WithRateLimit(1000))
	_, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "/v2/acts/custom~actor/run-sync-get-dataset-items", gotPath)
}
