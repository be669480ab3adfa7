package main

import (
	"log"
	"net/http"

	config "pricing-intel-api/configs"
	"pricing-intel-api/pkg/handlers"
	"pricing-intel-api/pkg/services"
	"pricing-intel-api/pkg/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// 設定の読み込み
	cfg := config.LoadConfig()
	bedrockCfg := config.GetBedrockConfig()
	serpAPICfg := config.GetSerpAPIConfig()
	ovanticaCfg := config.GetOvanticaConfig()

	// Ginルーターの初期化
	r := gin.Default()

	// サービスの初期化
	monitoringService := services.NewMonitoringService()
	scraperService := services.NewScraperService(ovanticaCfg)
	trendsService := services.NewTrendsService(serpAPICfg)
	bedrockService := services.NewBedrockService(bedrockCfg)
	pricingService := services.NewPricingService(scraperService, trendsService, bedrockService, ovanticaCfg.BaseURL)

	// Postgresストアの初期化（未設定でも起動は継続し、ラン系APIのみ503になる）
	var store *storage.PostgresStore
	if cfg.DatabaseURL != "" {
		var err error
		store, err = storage.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Failed to initialize PostgresStore: %v; run history and knowledge base are disabled", err)
			store = nil
		}
	} else {
		log.Println("DATABASE_URL is not set; run history and knowledge base are disabled")
	}

	// ハンドラーの初期化
	pricingHandler := handlers.NewPricingHandler(scraperService, bedrockService, pricingService)
	csvHandler := handlers.NewCSVHandler(pricingService)
	runHandler := handlers.NewRunHandler(store, pricingService)
	monitoringHandler := handlers.NewMonitoringHandler(monitoringService)

	// ミドルウェアの登録
	r.Use(monitoringService.LoggingMiddleware())
	r.Use(cors.Default())

	// 認証ミドルウェア
	authMiddleware := func(apiKey string) gin.HandlerFunc {
		return func(c *gin.Context) {
			if apiKey == "" {
				c.Next()
				return
			}
			providedKey := c.GetHeader("X-API-KEY")
			if providedKey != apiKey {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				return
			}
			c.Next()
		}
	}

	// ヘルスチェックエンドポイント
	r.GET("/health", handlers.HealthCheck)

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware(cfg.APIKey))
	{
		// 価格分析API
		v1.POST("/scrape", pricingHandler.Scrape)
		v1.POST("/analyze", pricingHandler.Analyze)
		v1.POST("/bedrock-test", pricingHandler.BedrockTest)
		v1.POST("/analyze-devices", pricingHandler.AnalyzeDevices)
		v1.POST("/analyze-csv", csvHandler.AnalyzeCSV)

		// 分析ラン履歴・ナレッジベースAPI
		runs := v1.Group("/runs")
		{
			runs.POST("", runHandler.CreateRun)
			runs.GET("", runHandler.ListRuns)
			runs.GET("/:id", runHandler.GetRun)
			runs.POST("/:id/feedback", runHandler.SubmitFeedback)
		}
		v1.GET("/knowledge-base", runHandler.ListKnowledgeBase)

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}
	}

	log.Printf("Starting Pricing Intel API server on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
