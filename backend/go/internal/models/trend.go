package models

import "time"

// TickResult 描述一次采集提交后的会话变化。
type TickResult struct {
	TickTime  time.Time      `json:"tick_time"`
	Terms     []string       `json:"terms"`
	Opened    []string       `json:"opened"`
	Closed    []string       `json:"closed"`
	Continued []string       `json:"continued"`
	Ranking   []CurrentEntry `json:"ranking"`
}

// CurrentEntry 是当前榜单中的一行。
type CurrentEntry struct {
	Position int    `json:"position"`
	TermID   uint   `json:"term_id"`
	Term     string `json:"term"`
}

// RankedTerm 是区间排名中的一行。
type RankedTerm struct {
	Rank           int    `json:"rank"`
	TermID         uint   `json:"term_id"`
	Term           string `json:"term"`
	CoveredSeconds int64  `json:"covered_seconds"`
	Hits           int64  `json:"hits"`
	Duration       string `json:"duration"`
	Link           string `json:"link,omitempty"`
	LinkTitle      string `json:"link_title,omitempty"`
}

// OpenSession 是开启中的会话及其词条文本。
type OpenSession struct {
	SessionID uint
	TermID    uint
	Text      string
	OpenedAt  time.Time
}

// TickEvent 是每次采集提交后发布到 Kafka 的事件。
type TickEvent struct {
	ID       string    `json:"id"`
	TickTime time.Time `json:"tick_time"`
	Terms    []string  `json:"terms"`
	Opened   []string  `json:"opened"`
	Closed   []string  `json:"closed"`
}

// EnrichmentMessage 是补充服务通过 Kafka 写入参考链接的消息。
// TermID 优先，为 0 时按 Term 文本匹配。
type EnrichmentMessage struct {
	TermID     uint      `json:"term_id,omitempty"`
	Term       string    `json:"term,omitempty"`
	Link       string    `json:"link"`
	Title      string    `json:"title"`
	ObservedAt time.Time `json:"observed_at"`
}
