package config

// BedrockConfig AWS Bedrock API設定。
// モデルIDは BEDROCK_MODEL_ID > AWS_BEDROCK_MODEL_ID の順で解決されます。
// ここで空だった場合も、リクエスト側の model_id 指定があれば呼び出しは成立します。
type BedrockConfig struct {
	ModelID string
	Region  string
	// UseConverseAPI が false の場合は旧来の InvokeModel 経路（Anthropic系のみ）を使います。
	UseConverseAPI bool
}

// GetBedrockConfig Bedrock設定を取得
func GetBedrockConfig() *BedrockConfig {
	return &BedrockConfig{
		ModelID:        getEnv("BEDROCK_MODEL_ID", getEnv("AWS_BEDROCK_MODEL_ID", "")),
		Region:         getEnv("BEDROCK_REGION", getEnv("AWS_REGION", "us-east-1")),
		UseConverseAPI: getEnv("BEDROCK_USE_CONVERSE", "true") != "false",
	}
}
