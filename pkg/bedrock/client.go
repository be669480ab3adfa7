package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// ErrInvocation はBedrock呼び出しの失敗を表す単一のエラー種別です。
// モデルID未解決・非対応モデルファミリー・リモート呼び出し失敗はすべてこれにラップされます。
var ErrInvocation = errors.New("bedrock invocation failed")

// Client はAWS Bedrock Runtimeへのリクエストを管理します。
// 認証情報とリージョンの解決はAWS SDKの既定の資格情報チェーンに委譲します。
type Client struct {
	defaultModelID string
	defaultRegion  string
	useConverseAPI bool

	mu       sync.Mutex
	runtimes map[string]*bedrockruntime.Client // リージョンごとのクライアントキャッシュ
}

// NewClient は新しいBedrockクライアントを作成します。
// defaultModelIDが空でも、呼び出し時のInvokeOptionsで指定されていれば動作します。
func NewClient(defaultModelID, defaultRegion string, useConverseAPI bool) *Client {
	return &Client{
		defaultModelID: defaultModelID,
		defaultRegion:  defaultRegion,
		useConverseAPI: useConverseAPI,
		runtimes:       make(map[string]*bedrockruntime.Client),
	}
}

// InvokeOptions 呼び出しごとの上書きパラメータ。
// ModelID/Regionが空の場合はクライアントのデフォルト値が使われます。
type InvokeOptions struct {
	ModelID     string
	Region      string
	MaxTokens   int
	Temperature float32
}

// Invoke はシステム指示とユーザープロンプトをモデルに送り、応答テキストを返します。
func (c *Client) Invoke(ctx context.Context, system, user string, opts InvokeOptions) (string, error) {
	modelID := c.resolveModelID(opts.ModelID)
	if modelID == "" {
		return "", fmt.Errorf("%w: missing model id (set BEDROCK_MODEL_ID or pass model_id in request)", ErrInvocation)
	}

	region := c.resolveRegion(opts.Region)

	// Converse APIを使わない構成では、Anthropic系のみ旧来のInvokeModel経路で呼び出せます。
	if !c.useConverseAPI && !strings.HasPrefix(modelID, "anthropic.") {
		return "", fmt.Errorf("%w: model family of %q is not supported on the legacy invoke path; enable the Converse API or use an Anthropic model id", ErrInvocation, modelID)
	}

	runtime, err := c.runtimeFor(ctx, region)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvocation, err)
	}

	if c.useConverseAPI {
		return c.converse(ctx, runtime, modelID, system, user, opts)
	}
	return c.invokeAnthropic(ctx, runtime, modelID, system, user, opts)
}

// converse はBedrock Converse API（チャット系モデル共通の推奨API）で呼び出します。
func (c *Client) converse(ctx context.Context, runtime *bedrockruntime.Client, modelID, system, user string, opts InvokeOptions) (string, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(modelID),
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: system},
		},
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: user},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(opts.MaxTokens)),
			Temperature: aws.Float32(opts.Temperature),
		},
	}

	resp, err := runtime.Converse(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: converse: %v", ErrInvocation, err)
	}

	text := extractConverseText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: empty response from model %s", ErrInvocation, modelID)
	}
	return text, nil
}

// invokeAnthropic はAnthropic互換ペイロードでInvokeModelを呼び出すフォールバック経路です。
func (c *Client) invokeAnthropic(ctx context.Context, runtime *bedrockruntime.Client, modelID, system, user string, opts InvokeOptions) (string, error) {
	body, err := json.Marshal(buildAnthropicRequest(system, user, opts))
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrInvocation, err)
	}

	resp, err := runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: invoke model: %v", ErrInvocation, err)
	}

	text, err := extractAnthropicText(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvocation, err)
	}
	return text, nil
}

// runtimeFor は指定リージョン向けのRuntimeクライアントを返します（リージョンごとにキャッシュ）。
func (c *Client) runtimeFor(ctx context.Context, region string) (*bedrockruntime.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if runtime, ok := c.runtimes[region]; ok {
		return runtime, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %v", err)
	}

	runtime := bedrockruntime.NewFromConfig(awsCfg)
	c.runtimes[region] = runtime
	return runtime, nil
}

func (c *Client) resolveModelID(override string) string {
	if override != "" {
		return override
	}
	return c.defaultModelID
}

func (c *Client) resolveRegion(override string) string {
	if override != "" {
		return override
	}
	if c.defaultRegion != "" {
		return c.defaultRegion
	}
	return "us-east-1"
}

// --- データ構造定義 ---

// anthropicRequest InvokeModel経路で使うAnthropic互換リクエスト
type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float32            `json:"temperature"`
	System           string             `json:"system"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse Anthropic互換レスポンス
type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func buildAnthropicRequest(system, user string, opts InvokeOptions) anthropicRequest {
	return anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        opts.MaxTokens,
		Temperature:      opts.Temperature,
		System:           system,
		Messages: []anthropicMessage{
			{Role: "user", Content: user},
		},
	}
}

// extractConverseText はConverse応答からテキストブロックを連結して取り出します。
func extractConverseText(resp *bedrockruntime.ConverseOutput) string {
	message, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}

	var texts []string
	for _, block := range message.Value.Content {
		if textBlock, ok := block.(*types.ContentBlockMemberText); ok && textBlock.Value != "" {
			texts = append(texts, textBlock.Value)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}

// extractAnthropicText はInvokeModel応答ボディからテキストを取り出します。
func extractAnthropicText(body []byte) (string, error) {
	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %v", err)
	}
	if len(parsed.Content) == 0 || parsed.Content[0].Text == "" {
		return "", fmt.Errorf("no text content in response")
	}
	return strings.TrimSpace(parsed.Content[0].Text), nil
}
