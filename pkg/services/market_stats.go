package services

import (
	"strconv"
	"strings"

	"pricing-intel-api/pkg/models"
)

// ComputePriceStats はスクレイピング結果の価格表示（"₹29,000" など）を数値化して集計します。
// 1件も数値化できない場合はnilを返します。集計はレスポンス表示用で、プロンプトには含めません。
func ComputePriceStats(listings []models.Listing) *models.PriceStats {
	var prices []float64
	for _, l := range listings {
		if l.Price == nil {
			continue
		}
		if v, ok := ParsePriceString(*l.Price); ok {
			prices = append(prices, v)
		}
	}

	if len(prices) == 0 {
		return nil
	}

	stats := &models.PriceStats{
		Count: len(prices),
		Min:   prices[0],
		Max:   prices[0],
	}
	sum := 0.0
	for _, p := range prices {
		if p < stats.Min {
			stats.Min = p
		}
		if p > stats.Max {
			stats.Max = p
		}
		sum += p
	}
	stats.Avg = sum / float64(len(prices))
	return stats
}

// ParsePriceString は通貨記号・桁区切りを取り除いて価格を数値化します。
// "Rs." のような略記のピリオドを拾わないよう、最初の数字より前はすべて捨てます。
func ParsePriceString(price string) (float64, bool) {
	start := strings.IndexFunc(price, func(r rune) bool { return r >= '0' && r <= '9' })
	if start == -1 {
		return 0, false
	}

	var b strings.Builder
	for _, r := range price[start:] {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
