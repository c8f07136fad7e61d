package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// PlayerNotifier tells the downstream media player to refresh its view of
// the library after a publish changed files on disk.
type PlayerNotifier struct {
	url    string
	apiKey string
	client *http.Client
}

func NewPlayerNotifier(url, apiKey string) *PlayerNotifier {
	return &PlayerNotifier{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a webhook target is configured.
func (n *PlayerNotifier) Enabled() bool {
	return n.url != ""
}

// LibraryUpdated posts the changed paths to the player webhook.
func (n *PlayerNotifier) LibraryUpdated(ctx context.Context, movieID uuid.UUID, paths []string) error {
	if !n.Enabled() {
		return nil
	}

	payload := map[string]interface{}{
		"event":     "library_updated",
		"source":    "mediaforge",
		"movie_id":  movieID.String(),
		"paths":     paths,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("X-Api-Key", n.apiKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		log.Printf("Notify: player webhook returned status %d", resp.StatusCode)
		return fmt.Errorf("player webhook returned status %d", resp.StatusCode)
	}
	return nil
}
