package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"pricing-intel-api/pkg/bedrock"
	"pricing-intel-api/pkg/models"
)

// 価格決定呼び出しの固定パラメータ。自由形式分析（温度0.2）より低い温度で、
// 厳密にパース可能なJSON出力に寄せています。
const (
	pricingMaxTokens   = 800
	pricingTemperature = 0.1
)

// ListingFetcher 比較対象リスティングの取得先
type ListingFetcher interface {
	FetchListings(ctx context.Context, query string) ([]models.Listing, error)
}

// TrendFetcher 検索需要指標の取得先。「データなし」は (nil, nil) で表現されます。
type TrendFetcher interface {
	FetchTrendMetrics(ctx context.Context, query string) (*models.TrendMetrics, error)
}

// DeviceAnalyzer 構築済みプロンプトとリスティングをホスト型LLMに送る呼び出し先
type DeviceAnalyzer interface {
	AnalyzeDevices(ctx context.Context, devices []models.Listing, query, instructions string, opts bedrock.InvokeOptions) (string, error)
}

// PricingService 1台分の価格分析パイプライン。
// スクレイプ → トレンド（ベストエフォート） → プロンプト構築 → Bedrock → 応答解釈 の順で
// 同期的に実行し、どの段階で失敗しても呼び出し元にはエラーを返しません。
// バッチ処理では1台の失敗が他のデバイスに波及しないことが前提のためです。
type PricingService struct {
	fetcher       ListingFetcher
	trends        TrendFetcher
	analyzer      DeviceAnalyzer
	searchBaseURL string
}

// NewPricingService 新しい価格分析サービスを作成
func NewPricingService(fetcher ListingFetcher, trends TrendFetcher, analyzer DeviceAnalyzer, searchBaseURL string) *PricingService {
	return &PricingService{
		fetcher:       fetcher,
		trends:        trends,
		analyzer:      analyzer,
		searchBaseURL: strings.TrimSuffix(searchBaseURL, "/"),
	}
}

// AnalyzeDevice は1台分の分析を実行します。idxはログ突合用の行番号です。
// SourceURL は外部呼び出しの前に属性のみから計算されるため、常に設定されます。
func (ps *PricingService) AnalyzeDevice(ctx context.Context, idx int, attrs models.DeviceAttributes) models.AnalysisResult {
	searchQuery := BuildSearchQuery(attrs)
	result := models.AnalysisResult{
		RiskFlags: []string{},
		SourceURL: ps.buildSourceURL(searchQuery),
	}

	log.Printf("Row %d: querying '%s' (brand=%s, model=%s, storage=%sGB)",
		idx, searchQuery, attrs.Brand, attrs.Model, attrs.StorageGB)

	listings, err := ps.fetcher.FetchListings(ctx, searchQuery)
	if err != nil {
		// スクレイプ失敗はこのデバイスのみ打ち切り。モデル呼び出しには進まない。
		log.Printf("Row %d: scrape failed: %v", idx, err)
		return result
	}
	log.Printf("Row %d: scraped %d listings from Ovantica", idx, len(listings))

	trendsSummary := ps.fetchTrendsSummary(ctx, idx, searchQuery)

	instructions, userContent := BuildPricingPrompt(attrs, trendsSummary)

	log.Printf("Row %d: sending %d scraped listings to Bedrock", idx, len(listings))
	analysisText, err := ps.analyzer.AnalyzeDevices(ctx, listings, userContent, instructions, bedrock.InvokeOptions{
		MaxTokens:   pricingMaxTokens,
		Temperature: pricingTemperature,
	})
	if err != nil {
		log.Printf("Row %d: Bedrock analysis failed: %v", idx, err)
		return result
	}

	decision := InterpretPricingResponse(analysisText)
	if decision.Price != "" {
		log.Printf("Row %d: predicted_price=%s", idx, decision.Price)
	}
	if decision.Velocity != "" {
		log.Printf("Row %d: velocity=%s", idx, decision.Velocity)
	}

	result.PredictedPrice = decision.Price
	result.Velocity = decision.Velocity
	result.Explanation = decision.Explanation
	result.RiskFlags = decision.RiskFlags
	return result
}

// fetchTrendsSummary はトレンド指標をベストエフォートで取得して1文に要約します。
// 取得失敗・データなしのどちらもパイプラインを止めず、固定の代替文を返します。
func (ps *PricingService) fetchTrendsSummary(ctx context.Context, idx int, query string) string {
	trends, err := ps.trends.FetchTrendMetrics(ctx, query)
	if err != nil {
		log.Printf("Row %d: trends fetch failed (treated as unavailable): %v", idx, err)
		return trendsUnavailableSummary
	}
	if trends == nil {
		log.Printf("Row %d: no Google Trends data", idx)
		return trendsUnavailableSummary
	}

	log.Printf("Row %d: Google Trends latest=%d recent_avg=%.2f overall_avg=%.2f direction=%s",
		idx, trends.Latest, trends.RecentAvg, trends.OverallAvg, trends.Direction)
	return FormatTrendsSummary(query, trends)
}

func (ps *PricingService) buildSourceURL(searchQuery string) string {
	return fmt.Sprintf("%s/catalogsearch/result?q=%s", ps.searchBaseURL, url.QueryEscape(searchQuery))
}
