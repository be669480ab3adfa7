package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pricing-intel-api/pkg/models"
	"pricing-intel-api/pkg/services"
	"pricing-intel-api/pkg/storage"
)

// RunHandler 分析ラン履歴と人手フィードバック（ナレッジベース）のハンドラ
type RunHandler struct {
	store          *storage.PostgresStore
	pricingService *services.PricingService
}

// NewRunHandler 新しいランハンドラを作成。storeはnilの場合があり、その際は503を返します。
func NewRunHandler(store *storage.PostgresStore, pricingService *services.PricingService) *RunHandler {
	return &RunHandler{
		store:          store,
		pricingService: pricingService,
	}
}

func (rh *RunHandler) storeAvailable(c *gin.Context) bool {
	if rh.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "データベースサービスが利用できません。設定を確認してください。",
		})
		return false
	}
	return true
}

// CreateRunRequest ラン作成のリクエスト
type CreateRunRequest struct {
	Name    string               `json:"name" binding:"required"`
	Devices []models.DeviceInput `json:"devices" binding:"required,min=1"`
}

// CreateRun はランを作成し、各デバイスを順に分析して結果とともに保存します。
func (rh *RunHandler) CreateRun(c *gin.Context) {
	if !rh.storeAvailable(c) {
		return
	}

	var req CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and devices are required"})
		return
	}

	run := &models.Run{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Status:    "processing",
		CreatedAt: time.Now().UTC(),
		Devices:   req.Devices,
		Results:   []models.DeviceResult{},
	}

	if err := rh.store.CreateRun(run); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ランの保存に失敗しました: " + err.Error()})
		return
	}

	// デバイスごとに独立して分析。失敗した行も空フィールドで結果に残る。
	results := make([]models.DeviceResult, 0, len(req.Devices))
	for idx, device := range req.Devices {
		result := rh.pricingService.AnalyzeDevice(c.Request.Context(), idx+1, device.DeviceAttributes)
		results = append(results, models.DeviceResult{ID: device.ID, AnalysisResult: result})
	}

	completedAt := time.Now().UTC()
	if err := rh.store.CompleteRun(run.ID, "completed", completedAt, results); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ラン結果の保存に失敗しました: " + err.Error()})
		return
	}

	run.Status = "completed"
	run.CompletedAt = &completedAt
	run.Results = results
	c.JSON(http.StatusOK, run)
}

// ListRuns は保存済みのランを新しい順に返します。
func (rh *RunHandler) ListRuns(c *gin.Context) {
	if !rh.storeAvailable(c) {
		return
	}

	runs, err := rh.store.ListRuns()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ラン一覧の取得に失敗しました: " + err.Error()})
		return
	}
	if runs == nil {
		runs = []*models.Run{}
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun はIDでランを取得します。
func (rh *RunHandler) GetRun(c *gin.Context) {
	if !rh.storeAvailable(c) {
		return
	}

	run, err := rh.store.GetRun(c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ランの取得に失敗しました: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, run)
}

// FeedbackEntry 1台分の人手修正
type FeedbackEntry struct {
	Brand                 string  `json:"brand" binding:"required"`
	Model                 string  `json:"model" binding:"required"`
	RAM                   string  `json:"ram"`
	Storage               string  `json:"storage"`
	ConditionTier         string  `json:"condition_tier"`
	RecommendedPrice      int     `json:"recommended_price"`
	HumanApprovedPrice    int     `json:"human_approved_price" binding:"required"`
	VelocityCategory      string  `json:"velocity_category"`
	HumanVelocityOverride *string `json:"human_velocity_override"`
	FeedbackNote          *string `json:"feedback_note"`
}

// SubmitFeedbackRequest フィードバック提出のリクエスト
type SubmitFeedbackRequest struct {
	Entries []FeedbackEntry `json:"entries" binding:"required,min=1"`
}

// SubmitFeedback はランに対する人手修正をナレッジベースに保存します。
func (rh *RunHandler) SubmitFeedback(c *gin.Context) {
	if !rh.storeAvailable(c) {
		return
	}

	runID := c.Param("id")
	if _, err := rh.store.GetRun(runID); errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ランの取得に失敗しました: " + err.Error()})
		return
	}

	var req SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entries is required"})
		return
	}

	now := time.Now().UTC()
	entries := make([]models.KnowledgeBaseEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, models.KnowledgeBaseEntry{
			ID:                    uuid.NewString(),
			Brand:                 e.Brand,
			Model:                 e.Model,
			RAM:                   e.RAM,
			Storage:               e.Storage,
			ConditionTier:         e.ConditionTier,
			RecommendedPrice:      e.RecommendedPrice,
			HumanApprovedPrice:    e.HumanApprovedPrice,
			Delta:                 e.HumanApprovedPrice - e.RecommendedPrice,
			VelocityCategory:      e.VelocityCategory,
			HumanVelocityOverride: e.HumanVelocityOverride,
			FeedbackNote:          e.FeedbackNote,
			RunID:                 runID,
			CreatedAt:             now,
		})
	}

	if err := rh.store.InsertKnowledgeBaseEntries(entries); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "フィードバックの保存に失敗しました: " + err.Error()})
		return
	}
	if err := rh.store.MarkFeedbackSubmitted(runID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ランの更新に失敗しました: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(entries)})
}

// ListKnowledgeBase は保存済みのナレッジベースエントリを返します。
func (rh *RunHandler) ListKnowledgeBase(c *gin.Context) {
	if !rh.storeAvailable(c) {
		return
	}

	entries, err := rh.store.ListKnowledgeBaseEntries()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ナレッジベースの取得に失敗しました: " + err.Error()})
		return
	}
	if entries == nil {
		entries = []models.KnowledgeBaseEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
