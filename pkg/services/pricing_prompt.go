package services

import (
	"fmt"
	"strings"

	"pricing-intel-api/pkg/models"
)

// trendsUnavailableSummary はトレンドデータが使えないときの固定の代替文です。
const trendsUnavailableSummary = "Google Trends data unavailable."

// pricingInstructions 価格決定用の固定システム指示。
// モデルには4フィールドのJSONオブジェクトのみを返すよう強制します。
const pricingInstructions = "You are Budli's Pricing Intelligence AI.\n\n" +
	"You receive:\n" +
	"- Device attributes (brand, model, storage, condition, warranty, RAM, network type)\n" +
	"- External market signals from scraped listings (price and title list in JSON).\n" +
	"- Search demand signals from Google Trends (normalized 0-100 indices over the last 12 months).\n\n" +
	"For the given device and signals, decide a competitive selling strategy.\n\n" +
	"Return ONLY a JSON object with the following fields:\n\n" +
	"1. recommended_price: number (in INR, no currency symbol, e.g. 28999)\n" +
	"2. velocity: string (\"Very Good\" | \"Good\" | \"Neutral\" | \"Average\" | \"Slow\")\n" +
	"3. explanation: string (2–4 sentences explaining the pricing decision)\n" +
	"4. risk_flags: array of strings (e.g. [\"Below competitor floor\", \"Low demand\", \"Data sparse\"]).\n\n" +
	"Velocity classification guidelines:\n" +
	"- Very Good: High demand signal (Google Trends recent_avg > 75, or many scraped listings with upward trend)\n" +
	"- Good: Above-average demand (Google Trends recent_avg 55-75, or solid scraped data showing interest)\n" +
	"- Neutral: Balanced demand (Google Trends recent_avg 40-55, or stable market conditions)\n" +
	"- Average: Below-average demand (Google Trends recent_avg 25-40, or sparse scraped data)\n" +
	"- Slow: Very low demand (Google Trends recent_avg < 25, or minimal scraped listings, downward trend)\n\n" +
	"Pricing guidelines:\n" +
	"- Start from the central tendency of scraped prices.\n" +
	"- Adjust downward for worse condition or weaker warranty vs typical, upward for better.\n" +
	"- For Very Good/Good velocity: price more aggressively at or above market average. For Average/Slow: price conservatively below average to move inventory faster.\n" +
	"- Ensure recommended_price is not unreasonably far from both market average and lowest competitor unless clearly justified.\n"

// BuildPricingPrompt はデバイス属性とトレンド要約からシステム指示とユーザープロンプトを組み立てます。
// 純粋関数であり、同じ入力に対して常に同じ出力を返します。
// スクレイピング結果のJSONはここには含めず、モデル呼び出しレイヤーで付加されます。
func BuildPricingPrompt(attrs models.DeviceAttributes, trendsSummary string) (instructions, userContent string) {
	var b strings.Builder
	b.WriteString("Device Input:\n")
	b.WriteString(fmt.Sprintf("Brand: %s\n", attrs.Brand))
	b.WriteString(fmt.Sprintf("Model: %s\n", attrs.Model))
	b.WriteString(fmt.Sprintf("Storage: %sGB\n", attrs.StorageGB))
	b.WriteString(fmt.Sprintf("RAM: %sGB\n", attrs.RAMGB))
	b.WriteString(fmt.Sprintf("Network: %s\n", attrs.NetworkType))
	b.WriteString(fmt.Sprintf("Condition: %s\n", attrs.ConditionTier))
	b.WriteString(fmt.Sprintf("Warranty: %s months\n", attrs.WarrantyMonths))
	b.WriteString("\n")
	b.WriteString(trendsSummary)

	return pricingInstructions, b.String()
}

// BuildSearchQuery はブランド・モデル・容量から検索クエリを組み立てます（空の要素はスキップ）。
func BuildSearchQuery(attrs models.DeviceAttributes) string {
	parts := make([]string, 0, 3)
	if attrs.Brand != "" {
		parts = append(parts, attrs.Brand)
	}
	if attrs.Model != "" {
		parts = append(parts, attrs.Model)
	}
	if attrs.StorageGB != "" {
		parts = append(parts, attrs.StorageGB+"GB")
	}
	return strings.Join(parts, " ")
}

// FormatTrendsSummary はトレンド指標を1文に要約します。nilの場合は固定の代替文を返します。
func FormatTrendsSummary(query string, trends *models.TrendMetrics) string {
	if trends == nil {
		return trendsUnavailableSummary
	}
	return fmt.Sprintf(
		"Google Trends (normalized 0-100) for '%s': latest=%d, recent_avg=%.2f, overall_avg=%.2f, direction=%s.",
		query, trends.Latest, trends.RecentAvg, trends.OverallAvg, trends.Direction,
	)
}
