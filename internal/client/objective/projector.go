package objective

import (
	"sort"

	"github.com/hitoshi/taskman/internal/model"
)

// GroupBy はグループ化の軸を表す。
type GroupBy int

const (
	// GroupByCategory はカテゴリ文字列でグループ化する。
	GroupByCategory GroupBy = iota
	// GroupByDeadline は期限の日付でグループ化する。
	GroupByDeadline
)

const (
	// GroupUncategorized はカテゴリ未設定の目標が集まるグループキー。
	GroupUncategorized = "Uncategorized"
	// GroupNoDate は期限未設定の目標が集まるグループキー。
	GroupNoDate = "No Date"
	// 期限グループの表示フォーマット（例: November 24, 2024）
	deadlineGroupLayout = "January 2, 2006"
)

// Group はグループキーとそれに属する目標の並びを表す。
type Group struct {
	Key        string
	Objectives []model.Objective
}

// Project はコレクションからグループ化ビューを導出する純粋関数。
// 入力コレクションは変更しない。同一入力は常に同一出力を返す。
//
// 全ての目標は必ずいずれか1つのグループに属する。落ちる要素も重複して
// 現れる要素もない。
//
// カテゴリ軸ではカテゴリ文字列をそのままキーとし、未設定は
// GroupUncategorizedへ集める。グループの並びはコレクション上の初出順。
//
// 期限軸ではまず期限昇順（期限なしは末尾）に安定ソートしたコピーを
// グループ化するため、グループは日付昇順に並び、GroupNoDateは常に末尾と
// なる。同一グループ内の相対順序は入力順を保つ。
func Project(collection []model.Objective, groupBy GroupBy) []Group {
	switch groupBy {
	case GroupByDeadline:
		return projectByDeadline(collection)
	default:
		return projectByCategory(collection)
	}
}

func projectByCategory(collection []model.Objective) []Group {
	keyOf := func(o model.Objective) string {
		if o.Category == "" {
			return GroupUncategorized
		}
		return string(o.Category)
	}
	return groupInOrder(collection, keyOf)
}

func projectByDeadline(collection []model.Objective) []Group {
	// 入力を変更しないようコピーをソートする
	sorted := make([]model.Objective, len(collection))
	copy(sorted, collection)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.HasDeadline() {
			return false
		}
		if !b.HasDeadline() {
			return true
		}
		return a.Deadline.Before(b.Deadline)
	})

	keyOf := func(o model.Objective) string {
		if !o.HasDeadline() {
			return GroupNoDate
		}
		return o.Deadline.UTC().Format(deadlineGroupLayout)
	}
	return groupInOrder(sorted, keyOf)
}

// groupInOrder は初出順でグループを構築する。
func groupInOrder(collection []model.Objective, keyOf func(model.Objective) string) []Group {
	groups := make([]Group, 0)
	index := make(map[string]int)
	for _, o := range collection {
		key := keyOf(o)
		i, seen := index[key]
		if !seen {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Objectives = append(groups[i].Objectives, o)
	}
	return groups
}
