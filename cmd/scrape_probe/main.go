package main

import (
	"context"
	"fmt"
	"log"
	"time"

	config "pricing-intel-api/configs"
	"pricing-intel-api/pkg/services"

	"github.com/joho/godotenv"
)

// Ovanticaスクレイピングの手動確認用CLI。
// 検索クエリを固定で投げて、取得できたリスティングを表示します。
func main() {
	godotenv.Load()

	fmt.Println("=== Ovantica スクレイピングテスト ===")

	scraperService := services.NewScraperService(config.GetOvanticaConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	query := "iphone 11"
	fmt.Printf("\n--- クエリ: %s ---\n", query)

	listings, err := scraperService.FetchListings(ctx, query)
	if err != nil {
		log.Fatalf("エラー: %v", err)
	}

	fmt.Printf("取得リスティング数: %d件\n", len(listings))
	for _, l := range listings {
		name, price, link := "-", "-", "-"
		if l.Name != nil {
			name = *l.Name
		}
		if l.Price != nil {
			price = *l.Price
		}
		if l.Link != nil {
			link = *l.Link
		}
		fmt.Printf("- %s | %s | %s\n", name, price, link)
	}

	if stats := services.ComputePriceStats(listings); stats != nil {
		fmt.Printf("\n価格集計: count=%d min=%.0f max=%.0f avg=%.2f\n", stats.Count, stats.Min, stats.Max, stats.Avg)
	}
}
