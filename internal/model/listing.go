package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ==================== 挂单类型 ====================

// ListingType 挂单类型（沿用社区黑话 WTS/WTB/WTT/WTL）
type ListingType string

const (
	ListingTypeSell    ListingType = "WTS" // Want To Sell
	ListingTypeBuy     ListingType = "WTB" // Want To Buy
	ListingTypeTrade   ListingType = "WTT" // Want To Trade
	ListingTypeAuction ListingType = "WTL" // Lelong，暂未开放
)

// Valid 是否为已知类型
func (t ListingType) Valid() bool {
	switch t {
	case ListingTypeSell, ListingTypeBuy, ListingTypeTrade, ListingTypeAuction:
		return true
	}
	return false
}

// PriceRequired 价格是否必填（求购可不填）
func (t ListingType) PriceRequired() bool {
	return t != ListingTypeBuy
}

// ==================== 挂单状态 ====================

const (
	ListingStatusActive = "active"
	ListingStatusSold   = "sold"
)

// ==================== 后端数据结构 ====================

// Listing 后端返回的挂单
type Listing struct {
	ID           string      `json:"id"`
	Type         ListingType `json:"type"`
	Title        string      `json:"title"`
	Price        *float64    `json:"price"`
	Condition    float64     `json:"condition"`
	Description  string      `json:"description"`
	Images       []string    `json:"images"`
	Image        string      `json:"image"`
	Status       string      `json:"status"`
	SellerID     string      `json:"sellerId"`
	SellerName   string      `json:"sellerName"`
	OpenForTrade bool        `json:"openForTrade"`
	IsBNIS       bool        `json:"isBNIS"`
	BggID        *string     `json:"bggId"`
	CurrentBid   float64     `json:"currentBid"`
	BidCount     int         `json:"bidCount"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    *time.Time  `json:"updatedAt,omitempty"`
}

// ListingPayload 提交到后端的挂单（创建/更新共用）
type ListingPayload struct {
	Type         ListingType `json:"type"`
	Title        string      `json:"title"`
	Price        *float64    `json:"price"`
	Condition    float64     `json:"condition"`
	Description  string      `json:"description"`
	Images       []string    `json:"images"`
	Image        string      `json:"image"`
	OpenForTrade bool        `json:"openForTrade"`
	IsBNIS       bool        `json:"isBNIS"`
	BggID        *string     `json:"bggId"`
	SellerID     string      `json:"sellerId"`
}

// User 后端用户
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// ==================== 外部协作方数据 ====================

// GameMatch 桌游数据库（BGG）搜索结果
type GameMatch struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Year        string `json:"year"`
	Image       string `json:"image,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Description string `json:"description,omitempty"`
}

// ParsedItem AI 识图 / 文本解析结果，除 title 外均为尽力而为
type ParsedItem struct {
	Title       string      `json:"title"`
	Price       *FlexNumber `json:"price,omitempty"`
	Condition   *FlexNumber `json:"condition,omitempty"`
	Description string      `json:"description,omitempty"`
}

// FlexNumber 兼容 AI 输出的数字、数字字符串（"RM 120"）与 null
type FlexNumber float64

func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "RM"))
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
		if err != nil {
			// 无法识别的价格按未知处理
			return nil
		}
		*n = FlexNumber(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = FlexNumber(f)
	return nil
}

// Float 返回数值，nil 时 ok=false
func (n *FlexNumber) Float() (float64, bool) {
	if n == nil {
		return 0, false
	}
	return float64(*n), true
}

// ParseItemsJSON 去掉 markdown 代码块后解析 AI 条目
// 模型可能返回数组或单个对象，单个对象视为只有一条；没有标题的条目丢弃
func ParseItemsJSON(raw string) ([]ParsedItem, error) {
	text := strings.ReplaceAll(raw, "```json", "")
	text = strings.TrimSpace(strings.ReplaceAll(text, "```", ""))
	if text == "" || text == "null" {
		return []ParsedItem{}, nil
	}

	var items []ParsedItem
	if strings.HasPrefix(text, "{") {
		var one ParsedItem
		if err := json.Unmarshal([]byte(text), &one); err != nil {
			return nil, err
		}
		items = []ParsedItem{one}
	} else if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, err
	}

	out := make([]ParsedItem, 0, len(items))
	for _, it := range items {
		it.Title = strings.TrimSpace(it.Title)
		if it.Title != "" {
			out = append(out, it)
		}
	}
	return out, nil
}
