package content

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hifz-quiz-service/internal/domain"
)

const (
	DefaultBaseURL = "https://api.alquran.cloud/v1"
	DefaultEdition = "quran-uthmani"
)

// Client reads mushaf pages from an alquran.cloud compatible API.
type Client struct {
	baseURL string
	edition string
	http    *http.Client
}

func NewClient(baseURL, edition string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if edition == "" {
		edition = DefaultEdition
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		edition: edition,
		http:    &http.Client{Timeout: timeout},
	}
}

type pageResponse struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   struct {
		Number int           `json:"number"`
		Ayahs  []domain.Ayah `json:"ayahs"`
	} `json:"data"`
}

// LoadPage fetches the ayahs printed on one page.
func (c *Client) LoadPage(ctx context.Context, page int) ([]domain.Ayah, error) {
	url := fmt.Sprintf("%s/page/%d/%s", c.baseURL, page, c.edition)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page %d: unexpected status %s", page, resp.Status)
	}

	var body pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode page %d: %w", page, err)
	}
	if len(body.Data.Ayahs) == 0 {
		return nil, fmt.Errorf("page %d: %w", page, domain.ErrContentUnavailable)
	}
	for i := range body.Data.Ayahs {
		if body.Data.Ayahs[i].Page == 0 {
			body.Data.Ayahs[i].Page = page
		}
	}
	return body.Data.Ayahs, nil
}
