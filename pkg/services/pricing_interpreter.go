package services

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	"pricing-intel-api/pkg/models"
)

// pricingDecisionPayload モデル応答の期待形。各フィールドは独立して欠損しうるため、
// 型の揺れがあるフィールドはRawMessageで受けて後段で文字列に寄せます。
type pricingDecisionPayload struct {
	RecommendedPrice json.RawMessage `json:"recommended_price"`
	Velocity         json.RawMessage `json:"velocity"`
	Explanation      string          `json:"explanation"`
	RiskFlags        []string        `json:"risk_flags"`
}

// InterpretPricingResponse はモデルの生テキストをPricingDecisionとして解釈します。
// モデルがJSON契約を守らないケースが支配的な失敗モードのため、この関数は決して失敗せず、
// 解釈できない場合は全フィールド空の判断を返します。
func InterpretPricingResponse(raw string) models.PricingDecision {
	decision := models.PricingDecision{RiskFlags: []string{}}

	var parsed pricingDecisionPayload
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		// 1フィールドの型違いで残りを捨てない。デコードできたフィールドは活かし、
		// 該当フィールドだけ空値に落ちる。
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			log.Printf("could not parse analysis as JSON (%v); raw text: %s", err, raw)
			return decision
		}
		log.Printf("analysis JSON field %q has unexpected type; keeping the remaining fields: %s", typeErr.Field, raw)
	}

	decision.Price = coerceScalar(parsed.RecommendedPrice)
	decision.Velocity = coerceScalar(parsed.Velocity)
	decision.Explanation = parsed.Explanation
	if parsed.RiskFlags != nil {
		decision.RiskFlags = parsed.RiskFlags
	}

	if decision.Velocity == "" {
		// モデルが指示に従っていない兆候なので警告を残す
		log.Printf("analysis JSON missing 'velocity': %s", raw)
	}

	return decision
}

// coerceScalar はJSON値（文字列・数値・null）を文字列表現に寄せます。
func coerceScalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}

	return trimmed
}
