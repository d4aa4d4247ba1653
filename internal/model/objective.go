// Package model はドメインモデルを定義する。
package model

import "time"

// Category は目標の分類を表す。
type Category string

// 定義済みカテゴリ
const (
	CategoryWork     Category = "work"
	CategoryHome     Category = "home"
	CategoryPersonal Category = "personal"
)

// ValidCategory はカテゴリが定義済みの値かどうかを判定する。
func ValidCategory(c Category) bool {
	switch c {
	case CategoryWork, CategoryHome, CategoryPersonal:
		return true
	}
	return false
}

// Objective はユーザーが管理する目標（タスク）を表す。
// IDとCreatedAtはサーバー側で採番され、以後変更されない。
// OwnerIDは所有者の参照キーであり、コレクション内の全ObjectiveのOwnerIDは
// 現在のセッションのIdentityと一致していなければならない。
type Objective struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Deadline    time.Time // 日付部分のみ有効。ゼロ値は期限未設定を表す
	Category    Category
	CreatedAt   time.Time
}

// HasDeadline は期限が設定されているかどうかを返す。
func (o *Objective) HasDeadline() bool {
	return !o.Deadline.IsZero()
}
