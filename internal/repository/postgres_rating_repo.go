package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/hitoshi/taskman/internal/model"
)

// PostgresRatingRepo はPostgreSQLを使用した評価リポジトリ。
type PostgresRatingRepo struct {
	db *sql.DB
}

// NewPostgresRatingRepo はPostgresRatingRepoを生成する。
func NewPostgresRatingRepo(db *sql.DB) *PostgresRatingRepo {
	return &PostgresRatingRepo{db: db}
}

// Create は評価を作成する。
func (r *PostgresRatingRepo) Create(ctx context.Context, rating *model.Rating) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ratings (id, account_id, stars, created_at) VALUES ($1, $2, $3, $4)`,
		rating.ID, rating.AccountID, rating.Stars, rating.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("評価の作成に失敗しました: %w", err)
	}
	return nil
}

// Summary は全評価の平均と件数を返す。評価が0件の場合は平均0を返す。
// 平均は小数第1位に丸める。
func (r *PostgresRatingRepo) Summary(ctx context.Context) (*model.RatingSummary, error) {
	var avg sql.NullFloat64
	var total int

	err := r.db.QueryRowContext(ctx,
		`SELECT AVG(stars), COUNT(*) FROM ratings`,
	).Scan(&avg, &total)
	if err != nil {
		return nil, fmt.Errorf("評価の集計に失敗しました: %w", err)
	}

	summary := &model.RatingSummary{Total: total}
	if avg.Valid {
		summary.Average = math.Round(avg.Float64*10) / 10
	}
	return summary, nil
}
