package models

import (
	"time"

	"gorm.io/datatypes"
)

// Term 代表一个曾经出现在热词榜上的词条。
// 首次出现时创建，之后永不删除。
type Term struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Text            string    `gorm:"uniqueIndex;not null;size:255" json:"text"`
	OccurrenceCount int64     `gorm:"not null;default:0" json:"occurrence_count"` // 出现过的采集次数，每次采集最多加一
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Session 代表一个词条连续在榜的一段时间。
// ClosedAt 为 nil 表示会话仍然开启，同一词条任意时刻最多只有一个开启的会话。
type Session struct {
	ID       uint       `gorm:"primaryKey" json:"id"`
	TermID   uint       `gorm:"index;not null" json:"term_id"`
	OpenedAt time.Time  `gorm:"index;not null" json:"opened_at"`
	ClosedAt *time.Time `gorm:"index" json:"closed_at,omitempty"`
}

// IsOpen 判断会话是否仍在进行。
func (s Session) IsOpen() bool {
	return s.ClosedAt == nil
}

// CurrentRanking 是最近一次采集的榜单快照，每次采集整体替换。
type CurrentRanking struct {
	Position int  `gorm:"primaryKey;autoIncrement:false" json:"position"`
	TermID   uint `gorm:"not null" json:"term_id"`
}

// Explanation 是外部补充服务写入的词条参考链接，仅用于展示。
type Explanation struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TermID     uint      `gorm:"uniqueIndex:idx_term_link;not null" json:"term_id"`
	Link       string    `gorm:"uniqueIndex:idx_term_link;not null;size:512" json:"link"`
	Title      string    `gorm:"size:1024" json:"title"`
	ObservedAt time.Time `json:"observed_at"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// Tick 记录每一次成功提交的采集，Terms 保存当次榜单原文。
type Tick struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	TickTime  time.Time      `gorm:"index;not null" json:"tick_time"`
	Terms     datatypes.JSON `json:"terms"`
	Opened    int            `json:"opened"`
	Closed    int            `json:"closed"`
	CreatedAt time.Time      `json:"created_at"`
}

// --- 自定义表名 ---

func (Term) TableName() string {
	return "terms"
}

func (Session) TableName() string {
	return "presence_sessions"
}

func (CurrentRanking) TableName() string {
	return "current_rankings"
}

func (Explanation) TableName() string {
	return "term_explanations"
}

func (Tick) TableName() string {
	return "ingest_ticks"
}

// AllModels 返回需要自动迁移的全部模型。
func AllModels() []interface{} {
	return []interface{}{&Term{}, &Session{}, &CurrentRanking{}, &Explanation{}, &Tick{}}
}
