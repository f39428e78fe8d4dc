package alert

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	simplejson "github.com/bitly/go-simplejson"
	"github.com/pkg/errors"

	"github.com/ninja0404/whale-signal/internal/metrics"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/state"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

// TitleFetcher external market metadata lookup; "" with a nil error means not found
type TitleFetcher interface {
	FetchTitle(ctx context.Context, marketID string) (string, error)
}

// MarketClient GET {base}/markets/{id}, reading "question" or "title"
type MarketClient struct {
	baseURL string
	client  *http.Client
	retry   utils.RetryOptions
}

func NewMarketClient(baseURL string, timeout time.Duration, attempts int) *MarketClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retry := utils.DefaultRetry
	if attempts > 0 {
		retry.Attempts = attempts
	}
	return &MarketClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		retry:   retry,
	}
}

func (c *MarketClient) FetchTitle(ctx context.Context, marketID string) (string, error) {
	var title string
	err := utils.Retry(ctx, c.retry, func(ctx context.Context) error {
		t, err := c.fetchOnce(ctx, marketID)
		if err != nil {
			return err
		}
		title = t
		return nil
	})
	if err != nil {
		metrics.ExternalCalls.WithLabelValues("market", "error").Inc()
		return "", err
	}
	metrics.ExternalCalls.WithLabelValues("market", "ok").Inc()
	return title, nil
}

func (c *MarketClient) fetchOnce(ctx context.Context, marketID string) (string, error) {
	endpoint := fmt.Sprintf("%s/markets/%s", c.baseURL, url.PathEscape(marketID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "market lookup")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Errorf("market lookup status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "read market body")
	}
	return parseTitle(body)
}

// parseTitle accepts an object or a list whose first element is the market
func parseTitle(body []byte) (string, error) {
	js, err := simplejson.NewJson(body)
	if err != nil {
		return "", errors.Wrap(err, "decode market body")
	}
	if arr, err := js.Array(); err == nil {
		if len(arr) == 0 {
			return "", nil
		}
		js = js.GetIndex(0)
	}
	for _, key := range []string{"question", "title", "name"} {
		if v := strings.TrimSpace(js.Get(key).MustString()); v != "" {
			return v, nil
		}
	}
	return "", nil
}

// PlaceholderTitle label used when no title can be resolved
func PlaceholderTitle(marketID string) string {
	return fmt.Sprintf("Market (%s)", marketID)
}

// Resolver display fields of an alert: redis cache, then markets table, then the fetcher
type Resolver struct {
	cache    *state.Store
	markets  repo.MarketRepo
	fetcher  TitleFetcher
	cacheTTL time.Duration
}

// NewResolver fetcher may be nil, unknown markets then get the placeholder
func NewResolver(cache *state.Store, markets repo.MarketRepo, fetcher TitleFetcher, cacheTTL time.Duration) *Resolver {
	return &Resolver{
		cache:    cache,
		markets:  markets,
		fetcher:  fetcher,
		cacheTTL: cacheTTL,
	}
}

// Title never fails; lookup errors degrade to the placeholder
func (r *Resolver) Title(ctx context.Context, marketID string) string {
	if title, err := r.cache.GetTitle(ctx, marketID); err == nil && title != "" {
		return title
	} else if err != nil {
		logger.Warn("⚠️ title cache read failed", logger.FieldMarket(marketID), logger.FieldErr(err))
	}

	title, err := r.markets.GetTitle(ctx, marketID)
	if err != nil {
		logger.Warn("⚠️ market table read failed", logger.FieldMarket(marketID), logger.FieldErr(err))
	}

	if title == "" && r.fetcher != nil {
		title, err = r.fetcher.FetchTitle(ctx, marketID)
		if err != nil {
			logger.Warn("⚠️ market title lookup failed", logger.FieldMarket(marketID), logger.FieldErr(err))
			return PlaceholderTitle(marketID)
		}
		if title != "" {
			if err := r.markets.SaveTitle(ctx, marketID, title); err != nil {
				logger.Warn("⚠️ save market title failed", logger.FieldMarket(marketID), logger.FieldErr(err))
			}
		}
	}
	if title == "" {
		return PlaceholderTitle(marketID)
	}

	if err := r.cache.SetTitle(ctx, marketID, title, r.cacheTTL); err != nil {
		logger.Warn("⚠️ title cache write failed", logger.FieldMarket(marketID), logger.FieldErr(err))
	}
	return title
}

// WalletName username or ENS name, "" when unknown
func (r *Resolver) WalletName(ctx context.Context, wallet string) string {
	name, err := r.markets.GetWalletName(ctx, wallet)
	if err != nil {
		logger.Warn("⚠️ wallet name lookup failed", logger.FieldWallet(wallet), logger.FieldErr(err))
		return ""
	}
	return name
}
