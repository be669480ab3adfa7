package services

import (
	"context"
	"encoding/json"
	"fmt"

	config "pricing-intel-api/configs"
	"pricing-intel-api/pkg/bedrock"
	"pricing-intel-api/pkg/models"
)

// defaultAnalysisInstructions 指示未指定時のシステムプロンプト
const defaultAnalysisInstructions = "You are a pricing analyst. Given a list of refurbished devices with prices, " +
	"summarize the results, identify the best value options, and note any anomalies."

// BedrockService AWS Bedrock 分析サービス
type BedrockService struct {
	client *bedrock.Client
}

// NewBedrockService 新しいBedrockサービスを作成
func NewBedrockService(cfg *config.BedrockConfig) *BedrockService {
	client := bedrock.NewClient(cfg.ModelID, cfg.Region, cfg.UseConverseAPI)
	return &BedrockService{
		client: client,
	}
}

// AnalyzeDevices はスクレイピングしたリスティングをJSON化してモデルに渡し、分析テキストを返します。
// リスティングはプロンプト文字列には埋め込まず、このレイヤーで直列化します。
func (bs *BedrockService) AnalyzeDevices(ctx context.Context, devices []models.Listing, query, instructions string, opts bedrock.InvokeOptions) (string, error) {
	system := instructions
	if system == "" {
		system = defaultAnalysisInstructions
	}

	if devices == nil {
		devices = []models.Listing{}
	}
	payload, err := json.Marshal(devices)
	if err != nil {
		return "", fmt.Errorf("failed to serialize devices: %w", err)
	}

	prompt := fmt.Sprintf(
		"Query:\n%s\n\nDevices (JSON):\n%s\n\nReturn a concise analysis in bullet points.",
		query, payload,
	)

	return bs.client.Invoke(ctx, system, prompt, opts)
}
