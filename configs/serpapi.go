package config

// SerpAPIConfig SerpAPI（Google トレンド取得）設定
type SerpAPIConfig struct {
	APIKey  string
	BaseURL string
}

// GetSerpAPIConfig SerpAPI設定を取得。APIキー未設定はエラーではなく「データなし」扱いになります。
func GetSerpAPIConfig() *SerpAPIConfig {
	return &SerpAPIConfig{
		APIKey:  getEnv("SERPAPI_API_KEY", getEnv("SERPAPI_KEY", "")),
		BaseURL: getEnv("SERPAPI_BASE_URL", "https://serpapi.com"),
	}
}
