package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// scoreTolerance bounds acceptable drift between the locally computed score
// and the server's acknowledgment. Scores are integral sums, so any drift
// means a real disagreement.
const scoreTolerance = 1e-9

// httpClient wraps http.Client with the identity headers the gateway would
// normally set.
type httpClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *httpClient {
	return &httpClient{
		client: &http.Client{Timeout: timeout},
	}
}

// get performs a GET with the given identity headers.
func (c *httpClient) get(ctx context.Context, rawURL, userID, role string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-User-ID", userID)
	if role != "" {
		req.Header.Set("X-Role", role)
	}
	return c.client.Do(req)
}

// postSubmission uploads one prediction file as the given student.
func (c *httpClient) postSubmission(ctx context.Context, baseURL string, sub Submission) (*http.Response, error) {
	u := baseURL + "/submissions?name=" + url.QueryEscape(sub.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(sub.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("X-User-ID", sub.UserID)
	req.Header.Set("X-User-Name", sub.UserName)
	return c.client.Do(req)
}

func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// submitAll pushes every generated submission through a worker pool and
// cross-checks each acknowledgment against the locally computed score.
func submitAll(ctx context.Context, config *Config, subs []Submission, stats *Stats) error {
	log.Printf("submitting %d files with %d workers...", len(subs), config.Workers)

	client := newHTTPClient(config.Timeout)

	var (
		submitted  int64
		accepted   int64
		duplicate  int64
		failed     int64
		mismatched int64
	)

	subChan := make(chan Submission, config.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range subChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				ack, err := submitOne(ctx, client, config.BaseURL, sub)
				atomic.AddInt64(&submitted, 1)
				switch {
				case err != nil:
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						log.Printf("submission failed for %s: %v", sub.UserName, err)
					}
				case ack.Duplicate:
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&accepted, 1)
				}
				if err == nil && math.Abs(ack.PublicScore-sub.Expected) > scoreTolerance {
					atomic.AddInt64(&mismatched, 1)
					log.Printf("score mismatch for %s: server %.0f, local %.0f",
						sub.UserName, ack.PublicScore, sub.Expected)
				}
			}
		}()
	}

	go func() {
		defer close(subChan)
		for _, sub := range subs {
			select {
			case <-ctx.Done():
				return
			case subChan <- sub:
			}
		}
	}()

	wg.Wait()

	stats.Submitted = int(atomic.LoadInt64(&submitted))
	stats.Accepted = int(atomic.LoadInt64(&accepted))
	stats.Duplicate = int(atomic.LoadInt64(&duplicate))
	stats.Failed = int(atomic.LoadInt64(&failed))
	stats.ScoreMismatches = int(atomic.LoadInt64(&mismatched))

	log.Printf("submission completed: accepted %d, duplicate %d, failed %d, mismatched %d",
		stats.Accepted, stats.Duplicate, stats.Failed, stats.ScoreMismatches)

	if stats.ScoreMismatches > 0 {
		return fmt.Errorf("%d acknowledgments disagreed with locally computed scores", stats.ScoreMismatches)
	}
	return nil
}

// submitOne uploads a single file and decodes the acknowledgment.
func submitOne(ctx context.Context, client *httpClient, baseURL string, sub Submission) (ackResponse, error) {
	resp, err := client.postSubmission(ctx, baseURL, sub)
	if err != nil {
		return ackResponse{}, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return ackResponse{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return ackResponse{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var ack ackResponse
	if err := json.Unmarshal(body, &ack); err != nil {
		return ackResponse{}, fmt.Errorf("failed to parse acknowledgment: %w", err)
	}
	return ack, nil
}

// getLeaderboard fetches the public board as a teacher, so user ids stay
// visible for verification.
func getLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]boardEntry, error) {
	log.Printf("fetching top %d leaderboard entries...", config.TopN)

	client := newHTTPClient(config.Timeout)
	u := fmt.Sprintf("%s/leaderboard?view=public&limit=%d", config.BaseURL, config.TopN)

	resp, err := client.get(ctx, u, "simulator", "teacher")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var board []boardEntry
	if err := json.Unmarshal(body, &board); err != nil {
		return nil, fmt.Errorf("failed to parse leaderboard: %w", err)
	}

	stats.LeaderboardEntries = len(board)
	log.Printf("retrieved %d leaderboard entries", len(board))
	return board, nil
}
