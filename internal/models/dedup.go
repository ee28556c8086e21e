package models

import "time"

// DedupEntry is the persisted form of one deduplicator map entry.
type DedupEntry struct {
	Key          string    `json:"key" gorm:"primaryKey"`
	RuleID       uint      `json:"rule_id"`
	DeviceID     string    `json:"device_id"`
	Metric       string    `json:"metric"`
	LastAccepted time.Time `json:"last_accepted"`
}
