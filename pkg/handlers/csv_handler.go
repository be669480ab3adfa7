package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"pricing-intel-api/pkg/models"
	"pricing-intel-api/pkg/services"
)

// CSVHandler CSV/Excelアップロードによる一括価格分析のハンドラ
type CSVHandler struct {
	pricingService *services.PricingService
}

// NewCSVHandler 新しいCSV分析ハンドラを作成
func NewCSVHandler(pricingService *services.PricingService) *CSVHandler {
	return &CSVHandler{
		pricingService: pricingService,
	}
}

// AnalyzeCSV はアップロードされたCSV/XLSXの各行を分析し、
// predicted_price / velocity / source_url 列を付加したCSVを返します。
// 行単位の失敗は空フィールドとして残り、他の行の処理を止めません。
func (ch *CSVHandler) AnalyzeCSV(c *gin.Context) {
	c.Request.ParseMultipartForm(10 << 20) // 10MB limit

	file, fileHeader, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ファイルの取得に失敗しました。"})
		return
	}
	defer file.Close()

	var rows [][]string
	fileName := fileHeader.Filename

	if strings.HasSuffix(strings.ToLower(fileName), ".xlsx") {
		f, err := excelize.OpenReader(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Excelファイルの読み込みに失敗しました。"})
			return
		}
		rows, err = f.GetRows(f.GetSheetName(0))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Excelシートの行取得に失敗しました。"})
			return
		}
	} else if strings.HasSuffix(strings.ToLower(fileName), ".csv") {
		r := csv.NewReader(file)
		r.FieldsPerRecord = -1
		rows, err = r.ReadAll()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "CSVファイルの解析に失敗しました。"})
			return
		}
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "サポートされていないファイル形式です。.xlsxまたは.csvをアップロードしてください。"})
		return
	}

	if len(rows) < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "CSVにはヘッダー行が必要です。"})
		return
	}

	log.Printf("Received file '%s' (%d rows)", fileName, len(rows)-1)

	header := rows[0]
	dataRows := rows[1:]

	// 必須列を検出
	colIdx := map[string]int{
		"brand":           findIndex(header, "brand"),
		"model":           findIndex(header, "model"),
		"storage_gb":      findIndex(header, "storage_gb"),
		"ram_gb":          findIndex(header, "ram_gb"),
		"network_type":    findIndex(header, "network_type"),
		"condition_tier":  findIndex(header, "condition_tier"),
		"warranty_months": findIndex(header, "warranty_months"),
	}

	var missingCols []string
	for _, name := range []string{"brand", "model", "storage_gb", "ram_gb", "network_type", "condition_tier", "warranty_months"} {
		if colIdx[name] == -1 {
			missingCols = append(missingCols, name)
		}
	}
	if len(missingCols) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("必要な列が見つかりませんでした: %s。ファイルのヘッダー行を確認してください。", strings.Join(missingCols, ", ")),
		})
		return
	}

	// 出力列を確保（既存なら流用、なければ末尾に追加）
	outHeader := append([]string{}, header...)
	ensureColumn := func(name string) int {
		if i := findIndex(outHeader, name); i != -1 {
			return i
		}
		outHeader = append(outHeader, name)
		return len(outHeader) - 1
	}
	priceCol := ensureColumn("predicted_price")
	velocityCol := ensureColumn("velocity")
	sourceURLCol := ensureColumn("source_url")

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.Write(outHeader)

	cell := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for idx, row := range dataRows {
		attrs := models.DeviceAttributes{
			Brand:          cell(row, colIdx["brand"]),
			Model:          cell(row, colIdx["model"]),
			StorageGB:      cell(row, colIdx["storage_gb"]),
			RAMGB:          cell(row, colIdx["ram_gb"]),
			NetworkType:    cell(row, colIdx["network_type"]),
			ConditionTier:  cell(row, colIdx["condition_tier"]),
			WarrantyMonths: cell(row, colIdx["warranty_months"]),
		}

		result := ch.pricingService.AnalyzeDevice(c.Request.Context(), idx+1, attrs)

		outRow := make([]string, len(outHeader))
		copy(outRow, row)
		outRow[priceCol] = result.PredictedPrice
		outRow[velocityCol] = result.Velocity
		outRow[sourceURLCol] = result.SourceURL
		writer.Write(outRow)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "CSVの書き出しに失敗しました。"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="analyzed.csv"`)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}
