// Package rating はプロダクト評価の送信と集計取得を提供する。
package rating

import (
	"context"
	"fmt"

	"github.com/hitoshi/taskman/internal/client/remote"
	"github.com/hitoshi/taskman/internal/model"
)

// 星評価の範囲
const (
	minStars = 1
	maxStars = 5
)

// SessionReader は現在のセッションの読み取りインターフェース。
type SessionReader interface {
	GetSession() model.Session
}

// Service は評価の送信と集計取得を包む。
type Service struct {
	table   remote.RatingTable
	session SessionReader
}

// NewService はServiceを生成する。
func NewService(table remote.RatingTable, session SessionReader) *Service {
	return &Service{
		table:   table,
		session: session,
	}
}

// Submit は1〜5の星評価を送信する。範囲外はリモート呼び出しを行わず
// ErrValidationを返す。
func (s *Service) Submit(ctx context.Context, stars int) error {
	if err := s.requireSession(); err != nil {
		return err
	}

	if stars < minStars || stars > maxStars {
		return fmt.Errorf("評価は%dから%dの間で指定してください: %w", minStars, maxStars, model.ErrValidation)
	}

	if err := s.table.SubmitRating(ctx, stars); err != nil {
		return fmt.Errorf("評価の送信に失敗しました: %w", err)
	}
	return nil
}

// Summary は全評価の平均と件数を返す。
func (s *Service) Summary(ctx context.Context) (*model.RatingSummary, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}

	summary, err := s.table.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("評価の取得に失敗しました: %w", err)
	}
	return summary, nil
}

// requireSession は呼び出し時点のセッションが有効であることを要求する。
func (s *Service) requireSession() error {
	session := s.session.GetSession()
	if !session.IsValid || session.Identity == nil {
		return fmt.Errorf("ログインが必要です: %w", model.ErrUnauthenticated)
	}
	return nil
}
