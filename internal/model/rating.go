// Package model はドメインモデルを定義する。
package model

import "time"

// Rating はプロダクト評価（1〜5の星）を表す。
type Rating struct {
	ID        string
	AccountID string
	Stars     int
	CreatedAt time.Time
}

// RatingSummary は全評価の集計結果を表す。
type RatingSummary struct {
	Average float64
	Total   int
}
