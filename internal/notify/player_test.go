package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibraryUpdatedPostsPayload(t *testing.T) {
	var gotKey string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewPlayerNotifier(srv.URL, "secret")
	movieID := uuid.New()
	err := n.LibraryUpdated(context.Background(), movieID, []string{"/lib/m-poster.jpg"})
	require.NoError(t, err)

	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "library_updated", gotBody["event"])
	assert.Equal(t, movieID.String(), gotBody["movie_id"])
}

func TestLibraryUpdatedErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewPlayerNotifier(srv.URL, "")
	err := n.LibraryUpdated(context.Background(), uuid.New(), nil)
	assert.Error(t, err)
}

func TestLibraryUpdatedDisabled(t *testing.T) {
	n := NewPlayerNotifier("", "")
	assert.False(t, n.Enabled())
	assert.NoError(t, n.LibraryUpdated(context.Background(), uuid.New(), nil))
}
