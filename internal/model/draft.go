package model

import (
	"errors"
	"math"
	"regexp"
	"strings"
)

// ==================== 常量 ====================

const (
	ConditionMin     = 1.0
	ConditionMax     = 10.0
	ConditionStep    = 0.5
	ConditionDefault = 8.0
)

var (
	// 编辑中的价格：空串或纯数字
	priceEditPattern = regexp.MustCompile(`^\d*$`)
	// 表单提交时：非空纯数字
	pricePattern = regexp.MustCompile(`^\d+$`)
)

// ==================== 草稿挂单 ====================

// DraftListing 向导中尚未提交的挂单
// 所有获取方式只填充其中一部分字段，不额外扩展字段
type DraftListing struct {
	Type         ListingType `json:"type"`
	Title        string      `json:"title"`
	Price        string      `json:"price"`
	Condition    float64     `json:"condition"`
	Images       []string    `json:"images"`
	Image        string      `json:"image"`
	Description  string      `json:"description"`
	OpenForTrade bool        `json:"openForTrade"`
	IsBNIS       bool        `json:"isBNIS"`
	ExternalID   string      `json:"bggId,omitempty"`

	// 封面来自识图上传的原图，可被数据库封面取代
	PlaceholderCover bool `json:"placeholderCover,omitempty"`
}

// NewDraft 创建指定类型的空草稿
func NewDraft(t ListingType) DraftListing {
	return DraftListing{
		Type:      t,
		Condition: ConditionDefault,
		Images:    []string{},
	}
}

// Clone 深拷贝（images 切片独立）
func (d DraftListing) Clone() DraftListing {
	c := d
	c.Images = append([]string{}, d.Images...)
	return c
}

// Cover 当前封面
func (d *DraftListing) Cover() string {
	if len(d.Images) > 0 {
		return d.Images[0]
	}
	return d.Image
}

// HasCover 是否有真实封面（占位封面不算）
func (d *DraftListing) HasCover() bool {
	return d.Cover() != "" && !d.PlaceholderCover
}

// ==================== 图片操作 ====================

// PrependCover 将图片放到首位作为封面
func (d *DraftListing) PrependCover(img string) {
	if img == "" {
		return
	}
	d.Images = append([]string{img}, d.Images...)
	d.Image = img
	d.PlaceholderCover = false
}

// AddImages 追加图片，首图同步到 image
func (d *DraftListing) AddImages(imgs ...string) {
	for _, img := range imgs {
		if img != "" {
			d.Images = append(d.Images, img)
		}
	}
	d.syncImage()
}

// SetCover 把第 idx 张图移到首位，其余顺序不变
func (d *DraftListing) SetCover(idx int) bool {
	if idx < 0 || idx >= len(d.Images) {
		return false
	}
	if idx == 0 {
		return true
	}
	img := d.Images[idx]
	rest := make([]string, 0, len(d.Images)-1)
	rest = append(rest, d.Images[:idx]...)
	rest = append(rest, d.Images[idx+1:]...)
	d.Images = append([]string{img}, rest...)
	d.Image = img
	// 用户主动选择的封面不再是占位
	d.PlaceholderCover = false
	return true
}

// RemoveImage 删除第 idx 张图
func (d *DraftListing) RemoveImage(idx int) bool {
	if idx < 0 || idx >= len(d.Images) {
		return false
	}
	d.Images = append(d.Images[:idx:idx], d.Images[idx+1:]...)
	if idx == 0 {
		d.PlaceholderCover = false
	}
	d.syncImage()
	return true
}

func (d *DraftListing) syncImage() {
	if len(d.Images) > 0 {
		d.Image = d.Images[0]
	} else {
		d.Image = ""
	}
}

// ==================== 成色 ====================

// SetBNIS 全新未拆封，成色固定 10
func (d *DraftListing) SetBNIS(on bool) {
	d.IsBNIS = on
	if on {
		d.Condition = ConditionMax
	}
}

// NormalizeCondition 夹到 [1,10] 并按 0.5 取整，0 视为未填
func NormalizeCondition(v float64) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return ConditionDefault
	}
	v = math.Round(v/ConditionStep) * ConditionStep
	return math.Max(ConditionMin, math.Min(ConditionMax, v))
}

// ConditionLabel 成色描述（仅展示用）
func ConditionLabel(v float64) string {
	switch {
	case v >= 10:
		return "Sealed, BNIS"
	case v >= 9.5:
		return "Opened, Never Played / Played Once"
	case v >= 9:
		return "Opened, Played a few times"
	case v >= 8:
		return "Played lightly, looks new"
	case v >= 7:
		return "Played moderately, minor wear"
	case v >= 6:
		return "Played moderately, clear wear"
	case v >= 5:
		return "Played heavily, visible wear/damage"
	case v > 1:
		return "Damaged or moldy"
	default:
		return "Trash / Spare Parts"
	}
}

// ==================== 校验 ====================

// FieldError 字段校验错误
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

// ValidPriceInput 编辑中的价格输入是否合法（空串或纯数字）
func ValidPriceInput(raw string) bool {
	return priceEditPattern.MatchString(raw)
}

// Validate 表单提交校验
func (d *DraftListing) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return &FieldError{Field: "title", Message: "Boardgame Title is compulsory."}
	}
	if !d.Type.Valid() {
		return &FieldError{Field: "type", Message: "Unknown listing type."}
	}
	if d.Type.PriceRequired() && d.Price == "" {
		return &FieldError{Field: "price", Message: "Price is compulsory."}
	}
	if d.Price != "" && !pricePattern.MatchString(d.Price) {
		return &FieldError{Field: "price", Message: "Price must be a whole number."}
	}
	if d.Type != ListingTypeBuy {
		if d.Condition < ConditionMin || d.Condition > ConditionMax {
			return &FieldError{Field: "condition", Message: "Condition must be between 1 and 10."}
		}
		if math.Mod(d.Condition, ConditionStep) != 0 {
			return &FieldError{Field: "condition", Message: "Condition moves in steps of 0.5."}
		}
	}
	return nil
}

// IsFieldError 判断是否为字段校验错误
func IsFieldError(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}
