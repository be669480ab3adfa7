package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricing-intel-api/pkg/bedrock"
	"pricing-intel-api/pkg/models"
	"pricing-intel-api/pkg/services"
)

// --- テスト用のスタブ ---

type stubFetcher struct {
	listings []models.Listing
	err      error
}

func (s *stubFetcher) FetchListings(_ context.Context, _ string) ([]models.Listing, error) {
	return s.listings, s.err
}

type stubTrends struct{}

func (s *stubTrends) FetchTrendMetrics(_ context.Context, _ string) (*models.TrendMetrics, error) {
	return nil, nil
}

type stubAnalyzer struct {
	response string
	err      error
}

func (s *stubAnalyzer) AnalyzeDevices(_ context.Context, _ []models.Listing, _, _ string, _ bedrock.InvokeOptions) (string, error) {
	return s.response, s.err
}

func strPtr(s string) *string { return &s }

func newTestPipeline(fetcher *stubFetcher, analyzer *stubAnalyzer) *services.PricingService {
	return services.NewPricingService(fetcher, &stubTrends{}, analyzer, "https://ovantica.com")
}

func TestHealthCheck(t *testing.T) {
	// Ginのテストモードに設定
	gin.SetMode(gin.TestMode)

	// ルーターを作成
	router := gin.New()
	router.GET("/health", HealthCheck)

	// テストリクエストを作成
	req, err := http.NewRequest("GET", "/health", nil)
	if err != nil {
		t.Fatal(err)
	}

	// レスポンスレコーダーを作成
	w := httptest.NewRecorder()

	// リクエストを実行
	router.ServeHTTP(w, req)

	// ステータスコードを確認
	assert.Equal(t, http.StatusOK, w.Code)

	// JSONレスポンスに期待されるフィールドが含まれていることを確認
	assert.Contains(t, w.Body.String(), "status")
	assert.Contains(t, w.Body.String(), "service")
}

func TestScrapeEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	fetcher := &stubFetcher{listings: []models.Listing{
		{Name: strPtr("iPhone 13 128GB"), Price: strPtr("₹29,000"), Link: strPtr("https://ovantica.com/p/1")},
		{Name: strPtr("iPhone 13 128GB Mint"), Price: strPtr("₹31,500")},
	}}
	analyzer := &stubAnalyzer{}
	handler := NewPricingHandler(fetcher, analyzer, newTestPipeline(fetcher, analyzer))

	router := gin.New()
	router.POST("/api/v1/scrape", handler.Scrape)

	body := bytes.NewBufferString(`{"query": "iphone 13"}`)
	req, _ := http.NewRequest("POST", "/api/v1/scrape", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ScrapeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "iphone 13", resp.Query)
	assert.Equal(t, 2, resp.Count)
	require.NotNil(t, resp.PriceStats)
	assert.Equal(t, 2, resp.PriceStats.Count)
	assert.InDelta(t, 30250, resp.PriceStats.Avg, 0.001)
}

func TestScrapeEndpointValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	fetcher := &stubFetcher{}
	analyzer := &stubAnalyzer{}
	handler := NewPricingHandler(fetcher, analyzer, newTestPipeline(fetcher, analyzer))

	router := gin.New()
	router.POST("/api/v1/scrape", handler.Scrape)

	req, _ := http.NewRequest("POST", "/api/v1/scrape", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScrapeEndpointUpstreamFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	fetcher := &stubFetcher{err: errors.New("scrape failed: unexpected status 503")}
	analyzer := &stubAnalyzer{}
	handler := NewPricingHandler(fetcher, analyzer, newTestPipeline(fetcher, analyzer))

	router := gin.New()
	router.POST("/api/v1/scrape", handler.Scrape)

	req, _ := http.NewRequest("POST", "/api/v1/scrape", bytes.NewBufferString(`{"query": "iphone 13"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// 上流失敗は502で返す
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Scrape failed")
}

func TestAnalyzeDevicesEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	fetcher := &stubFetcher{listings: []models.Listing{{Name: strPtr("iPhone 13"), Price: strPtr("₹29,000")}}}
	analyzer := &stubAnalyzer{response: `{"recommended_price": 29999, "velocity": "Good", "explanation": "ok", "risk_flags": []}`}
	handler := NewPricingHandler(fetcher, analyzer, newTestPipeline(fetcher, analyzer))

	router := gin.New()
	router.POST("/api/v1/analyze-devices", handler.AnalyzeDevices)

	body := `{"devices": [
		{"id": "d1", "brand": "Apple", "model": "iPhone 13", "storage_gb": "128", "ram_gb": "4", "network_type": "5G", "condition_tier": "Good", "warranty_months": "6"}
	]}`
	req, _ := http.NewRequest("POST", "/api/v1/analyze-devices", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.AnalyzeDevicesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "d1", resp.Results[0].ID)
	assert.Equal(t, "29999", resp.Results[0].PredictedPrice)
	assert.Equal(t, "Good", resp.Results[0].Velocity)
	assert.Contains(t, resp.Results[0].SourceURL, "Apple+iPhone+13+128GB")
}

func TestAnalyzeDevicesEndpointPerItemIsolation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// スクレイプが常に失敗しても、各デバイスは空フィールドの結果として返る
	fetcher := &stubFetcher{err: errors.New("scrape failed: connection refused")}
	analyzer := &stubAnalyzer{}
	handler := NewPricingHandler(fetcher, analyzer, newTestPipeline(fetcher, analyzer))

	router := gin.New()
	router.POST("/api/v1/analyze-devices", handler.AnalyzeDevices)

	body := `{"devices": [
		{"id": "d1", "brand": "Apple", "model": "iPhone 13", "storage_gb": "128"},
		{"id": "d2", "brand": "Samsung", "model": "Galaxy S10", "storage_gb": "64"}
	]}`
	req, _ := http.NewRequest("POST", "/api/v1/analyze-devices", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.AnalyzeDevicesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	for _, result := range resp.Results {
		assert.Empty(t, result.PredictedPrice)
		assert.Empty(t, result.Velocity)
		assert.NotEmpty(t, result.SourceURL)
	}
}

func TestBedrockTestEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	fetcher := &stubFetcher{}
	analyzer := &stubAnalyzer{response: "I am reachable."}
	handler := NewPricingHandler(fetcher, analyzer, newTestPipeline(fetcher, analyzer))

	router := gin.New()
	router.POST("/api/v1/bedrock-test", handler.BedrockTest)

	req, _ := http.NewRequest("POST", "/api/v1/bedrock-test", bytes.NewBufferString(`{"query": "test"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.BedrockTestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "I am reachable.", resp.Analysis)
}

func TestAnalyzeCSVEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	fetcher := &stubFetcher{listings: []models.Listing{{Price: strPtr("₹29,000")}}}
	analyzer := &stubAnalyzer{response: `{"recommended_price": 29999, "velocity": "Good"}`}
	handler := NewCSVHandler(newTestPipeline(fetcher, analyzer))

	router := gin.New()
	router.POST("/api/v1/analyze-csv", handler.AnalyzeCSV)

	// multipartでCSVをアップロード
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "devices.csv")
	require.NoError(t, err)
	part.Write([]byte("brand,model,storage_gb,ram_gb,network_type,condition_tier,warranty_months\n" +
		"Apple,iPhone 13,128,4,5G,Good,6\n"))
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest("POST", "/api/v1/analyze-csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "analyzed.csv")

	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	header := records[0]
	row := records[1]
	assert.Contains(t, header, "predicted_price")
	assert.Contains(t, header, "velocity")
	assert.Contains(t, header, "source_url")

	get := func(name string) string {
		for i, h := range header {
			if h == name {
				return row[i]
			}
		}
		return ""
	}
	assert.Equal(t, "29999", get("predicted_price"))
	assert.Equal(t, "Good", get("velocity"))
	assert.Contains(t, get("source_url"), "Apple+iPhone+13+128GB")
}

func TestAnalyzeCSVEndpointMissingColumns(t *testing.T) {
	gin.SetMode(gin.TestMode)

	fetcher := &stubFetcher{}
	analyzer := &stubAnalyzer{}
	handler := NewCSVHandler(newTestPipeline(fetcher, analyzer))

	router := gin.New()
	router.POST("/api/v1/analyze-csv", handler.AnalyzeCSV)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "devices.csv")
	part.Write([]byte("brand,model\nApple,iPhone 13\n"))
	mw.Close()

	req, _ := http.NewRequest("POST", "/api/v1/analyze-csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "storage_gb")
}

func TestRunEndpointsWithoutDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)

	fetcher := &stubFetcher{}
	analyzer := &stubAnalyzer{}
	handler := NewRunHandler(nil, newTestPipeline(fetcher, analyzer))

	router := gin.New()
	router.POST("/api/v1/runs", handler.CreateRun)
	router.GET("/api/v1/runs", handler.ListRuns)
	router.GET("/api/v1/knowledge-base", handler.ListKnowledgeBase)

	// ストア未設定時はラン系APIだけが503になる
	for _, tc := range []struct{ method, path, body string }{
		{"POST", "/api/v1/runs", `{"name":"r","devices":[{"id":"d1","brand":"Apple"}]}`},
		{"GET", "/api/v1/runs", ""},
		{"GET", "/api/v1/knowledge-base", ""},
	} {
		var req *http.Request
		if tc.body != "" {
			req, _ = http.NewRequest(tc.method, tc.path, bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
		} else {
			req, _ = http.NewRequest(tc.method, tc.path, nil)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, "%s %s", tc.method, tc.path)
	}
}
