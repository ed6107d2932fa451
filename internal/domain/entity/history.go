package entity

import "time"

// HistoryEntry is one append-only audit record of an approval request
type HistoryEntry struct {
	ID        int64     `json:"id"`
	RequestID string    `json:"requestId"`
	Action    string    `json:"action"`
	At        time.Time `json:"at"`
	By        string    `json:"by"`
	Comment   string    `json:"comment"`
}
