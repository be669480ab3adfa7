package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	config "pricing-intel-api/configs"
	"pricing-intel-api/pkg/models"
)

// ErrScrapeFailed はリスティング取得の失敗（接続・HTTPステータス・構造変化）を表す単一のエラー種別です。
var ErrScrapeFailed = errors.New("scrape failed")

// ScraperService Ovanticaのカタログ検索結果ページから比較対象リスティングを取得するサービス。
// 検索結果はサーバーサイドレンダリングされるため、ヘッドレスブラウザは不要です。
type ScraperService struct {
	baseURL string
	client  *http.Client
}

// NewScraperService 新しいスクレイピングサービスを作成
func NewScraperService(cfg *config.OvanticaConfig) *ScraperService {
	return &ScraperService{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchListings は検索クエリに一致するリスティングの一覧を返します。
// 取得・解析のどの段階で失敗しても ErrScrapeFailed にラップされます。
func (ss *ScraperService) FetchListings(ctx context.Context, query string) ([]models.Listing, error) {
	searchURL := fmt.Sprintf("%s/catalogsearch/result?q=%s", ss.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrScrapeFailed, err)
	}

	// ブラウザ相当のヘッダーを付けないと一部のCDNがブロックする
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")

	resp, err := ss.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request: %v", ErrScrapeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrScrapeFailed, resp.StatusCode, searchURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", ErrScrapeFailed, err)
	}

	return ss.extractListings(doc), nil
}

// extractListings は商品カード（a[data-testid^=product-card-]）からリスティングを抽出します。
func (ss *ScraperService) extractListings(doc *goquery.Document) []models.Listing {
	base, _ := url.Parse(ss.baseURL)

	listings := []models.Listing{}
	doc.Find(`a[data-testid^="product-card-"]`).Each(func(_ int, card *goquery.Selection) {
		var listing models.Listing

		if name := strings.TrimSpace(card.Find("h3").First().Text()); name != "" {
			listing.Name = &name
		}
		if price := strings.TrimSpace(card.Find(`span[data-testid^="price-"]`).First().Text()); price != "" {
			listing.Price = &price
		}
		if href, ok := card.Attr("href"); ok && href != "" {
			if ref, err := url.Parse(href); err == nil && base != nil {
				link := base.ResolveReference(ref).String()
				listing.Link = &link
			}
		}

		listings = append(listings, listing)
	})

	return listings
}
