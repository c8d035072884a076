// Package geocode は逆ジオコーディング機能を提供する。
// 座標から都市名を解決するための外部APIクライアントを含む。
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/machiawase/internal/metrics"
)

// ReverseGeocoder は座標から都市名を解決するインターフェース。
// タイムプレイス登録時の表示用都市名の補完に使用する。
type ReverseGeocoder interface {
	// CityName は座標に対応する都市名を返す。
	// 解決できない場合は空文字列を返す（エラーは返さない）。
	// 都市名は表示用の補助情報であり、取得失敗が登録を妨げてはならない。
	CityName(ctx context.Context, lat, lon float64) string
}

// Client はNominatim互換の逆ジオコーディングAPIのクライアント。
// SSRF防止機能付きのHTTPクライアントを注入して使用する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	collector  metrics.MetricsCollector
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLにはNominatim互換APIのベースURLを指定する。
// collectorはnilでもよい。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, collector metrics.MetricsCollector) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		collector:  collector,
	}
}

// recordFailure は解決失敗をメトリクスに記録する。
func (c *Client) recordFailure() {
	if c.collector != nil {
		c.collector.RecordGeocodeFailure()
	}
}

// reverseResponse はNominatim reverse APIのレスポンスのうち使用する部分。
type reverseResponse struct {
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
	} `json:"address"`
}

// CityName は座標に対応する都市名を返す。
// API呼び出しの失敗、エラーステータス、パース失敗はすべて空文字列として扱う。
func (c *Client) CityName(ctx context.Context, lat, lon float64) string {
	reqURL, err := url.Parse(c.baseURL + "/reverse")
	if err != nil {
		c.logger.Error("逆ジオコーディングURLのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		c.recordFailure()
		return ""
	}

	q := reqURL.Query()
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("zoom", "10")
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		c.logger.Error("逆ジオコーディングリクエストの作成に失敗しました",
			slog.String("error", err.Error()),
		)
		c.recordFailure()
		return ""
	}
	req.Header.Set("User-Agent", "Machiawase/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("逆ジオコーディングAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.Float64("lat", lat),
			slog.Float64("lon", lon),
		)
		c.recordFailure()
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("逆ジオコーディングAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		c.recordFailure()
		return ""
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("逆ジオコーディングレスポンスの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		c.recordFailure()
		return ""
	}

	var result reverseResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Warn("逆ジオコーディングレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		c.recordFailure()
		return ""
	}

	// city > town > village の順で採用する
	switch {
	case result.Address.City != "":
		return result.Address.City
	case result.Address.Town != "":
		return result.Address.Town
	case result.Address.Village != "":
		return result.Address.Village
	}
	return ""
}

// NopGeocoder は常に空文字列を返すReverseGeocoder。
// 外部APIを使用しない構成やテストで使用する。
type NopGeocoder struct{}

// CityName は常に空文字列を返す。
func (NopGeocoder) CityName(ctx context.Context, lat, lon float64) string {
	return ""
}

var (
	_ ReverseGeocoder = (*Client)(nil)
	_ ReverseGeocoder = NopGeocoder{}
)
