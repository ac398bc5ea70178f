package trello

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"worksync/internal"
	"worksync/internal/config"
)

var ErrMissingCredentials = errors.New("missing TRELLO_API_KEY or TRELLO_TOKEN")

const cardFields = "name,desc,idList,closed,due,shortUrl,pos,labels"

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TrelloTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.TrelloRateLimitRPS),
	}
}

// FetchCards returns every card of the configured board in board order, archived
// cards last when TRELLO_INCLUDE_ARCHIVED is on.
func (c *Client) FetchCards(ctx context.Context) ([]internal.RawCard, error) {
	if err := c.cfg.Require("TRELLO_BOARD_ID", c.cfg.TrelloBoardID); err != nil {
		return nil, err
	}

	lists, err := c.GetLists(ctx)
	if err != nil {
		return nil, err
	}
	cards, err := c.GetCards(ctx, "open")
	if err != nil {
		return nil, err
	}
	if c.cfg.TrelloIncludeArchived {
		closed, err := c.GetCards(ctx, "closed")
		if err != nil {
			return nil, err
		}
		cards = append(cards, closed...)
	}

	log.Debug().Int("cards", len(cards)).Int("lists", len(lists)).Msg("trello board fetched")
	return toRawCards(cards, lists, nil), nil
}

func (c *Client) GetLists(ctx context.Context) ([]List, error) {
	var lists []List
	err := c.doJSON(ctx, http.MethodGet, "boards/"+c.cfg.TrelloBoardID+"/lists", map[string]string{
		"filter": "all",
		"fields": "name,closed",
	}, &lists)
	return lists, err
}

func (c *Client) GetLabels(ctx context.Context) ([]Label, error) {
	var labels []Label
	err := c.doJSON(ctx, http.MethodGet, "boards/"+c.cfg.TrelloBoardID+"/labels", map[string]string{
		"fields": "name,color",
	}, &labels)
	return labels, err
}

// GetCards loads board cards with their checklists; filter is "open", "closed" or "all".
func (c *Client) GetCards(ctx context.Context, filter string) ([]Card, error) {
	var cards []Card
	err := c.doJSON(ctx, http.MethodGet, "boards/"+c.cfg.TrelloBoardID+"/cards/"+filter, map[string]string{
		"fields":           cardFields,
		"checklists":       "all",
		"checklist_fields": "name,pos",
	}, &cards)
	return cards, err
}

// FindList returns the open list whose name matches, ignoring case.
func (c *Client) FindList(ctx context.Context, name string) (List, error) {
	lists, err := c.GetLists(ctx)
	if err != nil {
		return List{}, err
	}
	for _, l := range lists {
		if !l.Closed && strings.EqualFold(strings.TrimSpace(l.Name), strings.TrimSpace(name)) {
			return l, nil
		}
	}
	return List{}, fmt.Errorf("trello list %q not found", name)
}

// CreateCard adds a card at the bottom of the list.
func (c *Client) CreateCard(ctx context.Context, listID, name, desc string, labelIDs []string) (Card, error) {
	params := map[string]string{
		"idList": listID,
		"name":   name,
		"desc":   desc,
		"pos":    "bottom",
	}
	if len(labelIDs) > 0 {
		params["idLabels"] = strings.Join(labelIDs, ",")
	}
	var card Card
	err := c.doJSON(ctx, http.MethodPost, "cards", params, &card)
	return card, err
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, params map[string]string, out any) error {
	if strings.TrimSpace(c.cfg.TrelloAPIKey) == "" || strings.TrimSpace(c.cfg.TrelloToken) == "" {
		return ErrMissingCredentials
	}

	baseURL := strings.TrimRight(c.cfg.TrelloAPIBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	q.Set("key", c.cfg.TrelloAPIKey)
	q.Set("token", c.cfg.TrelloToken)
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt).Str("endpoint", endpoint).Msg("trello request retry")
				time.Sleep(backoff)
				lastErr = fmt.Errorf("trello status %d", resp.StatusCode)
				continue
			}
			return fmt.Errorf("trello api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode trello %s: %w", endpoint, err)
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("trello request failed")
	}
	return lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
