package models

import "time"

// DeviceAttributes 1台分のデバイス属性（価格分析の入力）
// コア側では属性の値そのものは検証せず、プロンプトに埋め込める文字列として扱います。
type DeviceAttributes struct {
	Brand          string `json:"brand"`
	Model          string `json:"model"`
	StorageGB      string `json:"storage_gb"`
	RAMGB          string `json:"ram_gb"`
	NetworkType    string `json:"network_type"`
	ConditionTier  string `json:"condition_tier"`
	WarrantyMonths string `json:"warranty_months"`
}

// Listing スクレイピングで取得した比較対象リスティング。
// 各フィールドはページ構造に依存するため、欠損を許容します。
type Listing struct {
	Name  *string `json:"name"`
	Price *string `json:"price"`
	Link  *string `json:"link"`
}

// TrendMetrics Google トレンドの正規化済み（0-100）需要指標。
// 完全に揃っているか、まったく存在しないかのどちらかで、部分的な状態は持ちません。
type TrendMetrics struct {
	Latest     int     `json:"latest"`
	OverallAvg float64 `json:"overall_avg"`
	RecentAvg  float64 `json:"recent_avg"`
	Direction  string  `json:"direction"` // "increasing" | "flat" | "decreasing"
	RawPoints  []int   `json:"raw_points"`
}

// PricingDecision モデル応答を解釈した結果。欠損フィールドは空値で埋められます。
type PricingDecision struct {
	Price       string   `json:"recommended_price"`
	Velocity    string   `json:"velocity"`
	Explanation string   `json:"explanation"`
	RiskFlags   []string `json:"risk_flags"`
}

// AnalysisResult 1台分の最終的な分析結果。
// SourceURL は入力属性のみから導出されるため、パイプラインの成否に関わらず常に設定されます。
type AnalysisResult struct {
	PredictedPrice string   `json:"predicted_price"`
	Velocity       string   `json:"velocity"`
	Explanation    string   `json:"explanation"`
	RiskFlags      []string `json:"risk_flags"`
	SourceURL      string   `json:"source_url"`
}

// PriceStats スクレイピング結果の価格集計
type PriceStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

// --- APIリクエスト/レスポンス ---

// ScrapeRequest スクレイピングAPIのリクエスト
type ScrapeRequest struct {
	Query string `json:"query" binding:"required,min=1"`
}

// ScrapeResponse スクレイピングAPIのレスポンス
type ScrapeResponse struct {
	Query      string      `json:"query"`
	Count      int         `json:"count"`
	Devices    []Listing   `json:"devices"`
	PriceStats *PriceStats `json:"price_stats,omitempty"`
}

// AnalyzeRequest 自由形式分析APIのリクエスト
type AnalyzeRequest struct {
	Query        string   `json:"query" binding:"required,min=1"`
	Instructions string   `json:"instructions"`
	ModelID      string   `json:"model_id"`
	Region       string   `json:"region"`
	MaxTokens    int      `json:"max_tokens"`
	Temperature  *float32 `json:"temperature"`
}

// AnalyzeResponse 自由形式分析APIのレスポンス
type AnalyzeResponse struct {
	Query    string    `json:"query"`
	Count    int       `json:"count"`
	Devices  []Listing `json:"devices"`
	Analysis string    `json:"analysis"`
}

// BedrockTestResponse Bedrock疎通確認のレスポンス
type BedrockTestResponse struct {
	OK       bool   `json:"ok"`
	Analysis string `json:"analysis"`
}

// DeviceInput ID付きのデバイス分析リクエスト項目
type DeviceInput struct {
	ID string `json:"id" binding:"required"`
	DeviceAttributes
}

// DeviceResult ID付きの分析結果
type DeviceResult struct {
	ID string `json:"id"`
	AnalysisResult
}

// AnalyzeDevicesRequest 複数デバイス分析のリクエスト
type AnalyzeDevicesRequest struct {
	Devices []DeviceInput `json:"devices" binding:"required"`
}

// AnalyzeDevicesResponse 複数デバイス分析のレスポンス
type AnalyzeDevicesResponse struct {
	Results []DeviceResult `json:"results"`
}

// --- 永続化エンティティ ---

// Run 1回の分析バッチ。結果と合わせて履歴として保存されます。
type Run struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Status            string         `json:"status"` // "pending" | "processing" | "completed" | "error"
	CreatedAt         time.Time      `json:"created_at"`
	CompletedAt       *time.Time     `json:"completed_at"`
	Devices           []DeviceInput  `json:"devices"`
	Results           []DeviceResult `json:"results"`
	FeedbackSubmitted bool           `json:"feedback_submitted"`
}

// KnowledgeBaseEntry モデル推奨に対する人手の修正。今後の参照用に保存されます。
type KnowledgeBaseEntry struct {
	ID                    string    `json:"id"`
	Brand                 string    `json:"brand"`
	Model                 string    `json:"model"`
	RAM                   string    `json:"ram"`
	Storage               string    `json:"storage"`
	ConditionTier         string    `json:"condition_tier"`
	RecommendedPrice      int       `json:"recommended_price"`
	HumanApprovedPrice    int       `json:"human_approved_price"`
	Delta                 int       `json:"delta"` // human - recommended
	VelocityCategory      string    `json:"velocity_category"`
	HumanVelocityOverride *string   `json:"human_velocity_override"`
	FeedbackNote          *string   `json:"feedback_note"`
	RunID                 string    `json:"run_id"`
	CreatedAt             time.Time `json:"created_at"`
}
