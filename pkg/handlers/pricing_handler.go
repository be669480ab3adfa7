package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pricing-intel-api/pkg/bedrock"
	"pricing-intel-api/pkg/models"
	"pricing-intel-api/pkg/services"
)

const (
	defaultMaxTokens   = 800
	maxAllowedTokens   = 4000
	defaultTemperature = float32(0.2)
)

// PricingHandler 価格分析APIのハンドラ
type PricingHandler struct {
	fetcher        services.ListingFetcher
	analyzer       services.DeviceAnalyzer
	pricingService *services.PricingService
}

// NewPricingHandler 新しい価格分析ハンドラを作成
func NewPricingHandler(fetcher services.ListingFetcher, analyzer services.DeviceAnalyzer, pricingService *services.PricingService) *PricingHandler {
	return &PricingHandler{
		fetcher:        fetcher,
		analyzer:       analyzer,
		pricingService: pricingService,
	}
}

// Scrape は検索クエリに一致するリスティングと価格集計を返します。
func (ph *PricingHandler) Scrape(c *gin.Context) {
	var req models.ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	devices, err := ph.fetcher.FetchListings(c.Request.Context(), req.Query)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Scrape failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.ScrapeResponse{
		Query:      req.Query,
		Count:      len(devices),
		Devices:    devices,
		PriceStats: services.ComputePriceStats(devices),
	})
}

// Analyze はスクレイピング結果を自由形式でBedrockに分析させます。
func (ph *PricingHandler) Analyze(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	devices, err := ph.fetcher.FetchListings(c.Request.Context(), req.Query)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Scrape failed: " + err.Error()})
		return
	}

	analysis, err := ph.analyzer.AnalyzeDevices(c.Request.Context(), devices, req.Query, req.Instructions, invokeOptions(req, maxAllowedTokens))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Bedrock analysis failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.AnalyzeResponse{
		Query:    req.Query,
		Count:    len(devices),
		Devices:  devices,
		Analysis: analysis,
	})
}

// BedrockTest は設定済みモデルへの軽量な疎通確認です。
func (ph *PricingHandler) BedrockTest(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 疎通確認はボディなしでも実行できるようにする
		req = models.AnalyzeRequest{Query: "Bedrock connectivity test"}
	}

	instructions := req.Instructions
	if instructions == "" {
		instructions = "Reply with a short sentence confirming that you are reachable."
	}

	// 疎通確認ではトークン数を小さく抑える
	analysis, err := ph.analyzer.AnalyzeDevices(c.Request.Context(), []models.Listing{}, "Bedrock connectivity test", instructions, invokeOptions(req, 128))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Bedrock test failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.BedrockTestResponse{OK: true, Analysis: analysis})
}

// AnalyzeDevices は複数デバイスをそれぞれ独立に分析します。
// 1台の失敗は空フィールドの結果になるだけで、バッチ全体は止まりません。
func (ph *PricingHandler) AnalyzeDevices(c *gin.Context) {
	var req models.AnalyzeDevicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "devices is required"})
		return
	}

	results := make([]models.DeviceResult, 0, len(req.Devices))
	for idx, device := range req.Devices {
		result := ph.pricingService.AnalyzeDevice(c.Request.Context(), idx+1, device.DeviceAttributes)
		results = append(results, models.DeviceResult{
			ID:             device.ID,
			AnalysisResult: result,
		})
	}

	c.JSON(http.StatusOK, models.AnalyzeDevicesResponse{Results: results})
}

// invokeOptions はリクエストの上書き値と上限から呼び出しパラメータを組み立てます。
func invokeOptions(req models.AnalyzeRequest, tokenCeiling int) bedrock.InvokeOptions {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if maxTokens > tokenCeiling {
		maxTokens = tokenCeiling
	}

	temperature := defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	return bedrock.InvokeOptions{
		ModelID:     req.ModelID,
		Region:      req.Region,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}
