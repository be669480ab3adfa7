package config

// OvanticaConfig Ovantica カタログ検索（リスティング取得元）設定
type OvanticaConfig struct {
	BaseURL string
}

// GetOvanticaConfig Ovantica設定を取得
func GetOvanticaConfig() *OvanticaConfig {
	return &OvanticaConfig{
		BaseURL: getEnv("OVANTICA_BASE_URL", "https://ovantica.com"),
	}
}
