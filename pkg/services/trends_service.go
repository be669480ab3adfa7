package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "pricing-intel-api/configs"
	"pricing-intel-api/pkg/models"
)

// TrendsService SerpAPI経由でGoogleトレンドの需要指標を取得するサービス。
// APIキー未設定や時系列データなしはエラーではなく (nil, nil) で表現します。
type TrendsService struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewTrendsService 新しいトレンドサービスを作成
func NewTrendsService(cfg *config.SerpAPIConfig) *TrendsService {
	return &TrendsService{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// serpAPITimeseriesResponse SerpAPIのGoogleトレンド時系列レスポンス（必要部分のみ）
type serpAPITimeseriesResponse struct {
	InterestOverTime struct {
		TimelineData []struct {
			Values []struct {
				ExtractedValue json.Number `json:"extracted_value"`
			} `json:"values"`
		} `json:"timeline_data"`
	} `json:"interest_over_time"`
}

// FetchTrendMetrics は直近12ヶ月の検索需要指標を取得します。
// データが得られない場合は (nil, nil)、通信自体の失敗のみエラーを返します。
func (ts *TrendsService) FetchTrendMetrics(ctx context.Context, query string) (*models.TrendMetrics, error) {
	if ts.apiKey == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("api_key", ts.apiKey)
	params.Set("engine", "google_trends")
	params.Set("q", query)
	params.Set("data_type", "TIMESERIES")
	params.Set("date", "today 12-m")

	reqURL := fmt.Sprintf("%s/search.json?%s", ts.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("trends: build request: %w", err)
	}

	resp, err := ts.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trends: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trends: unexpected status %d", resp.StatusCode)
	}

	var parsed serpAPITimeseriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("trends: decode response: %w", err)
	}

	values := make([]int, 0, len(parsed.InterestOverTime.TimelineData))
	for _, point := range parsed.InterestOverTime.TimelineData {
		for _, v := range point.Values {
			n, err := v.ExtractedValue.Int64()
			if err != nil {
				continue
			}
			values = append(values, int(n))
		}
	}

	if len(values) == 0 {
		return nil, nil
	}

	return computeTrendMetrics(values), nil
}

// computeTrendMetrics は0-100の時系列から要約指標を計算します。
func computeTrendMetrics(values []int) *models.TrendMetrics {
	latest := values[len(values)-1]
	overallAvg := meanInts(values)

	tail := values
	if len(values) >= 4 {
		tail = values[len(values)-4:]
	}
	recentAvg := meanInts(tail)

	// 直近平均と全体平均の比較による単純な方向判定
	direction := "flat"
	switch {
	case recentAvg > overallAvg*1.1:
		direction = "increasing"
	case recentAvg < overallAvg*0.9:
		direction = "decreasing"
	}

	return &models.TrendMetrics{
		Latest:     latest,
		OverallAvg: overallAvg,
		RecentAvg:  recentAvg,
		Direction:  direction,
		RawPoints:  values,
	}
}

func meanInts(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}
