package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

// PostgresObjectiveRepo はPostgreSQLを使用した目標リポジトリ。
// 全ての読み書きは所有者IDでスコープされ、他者の行には決して触れない。
type PostgresObjectiveRepo struct {
	db *sql.DB
}

// NewPostgresObjectiveRepo はPostgresObjectiveRepoを生成する。
func NewPostgresObjectiveRepo(db *sql.DB) *PostgresObjectiveRepo {
	return &PostgresObjectiveRepo{db: db}
}

// ListByOwner は指定所有者の全目標をcreated_at昇順で返す。0件は空スライス。
func (r *PostgresObjectiveRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Objective, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, description, deadline, category, created_at
		 FROM objectives WHERE user_id = $1 ORDER BY created_at ASC, id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("目標一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	objectives := []*model.Objective{}
	for rows.Next() {
		o := &model.Objective{}
		var deadline sql.NullTime

		if err := rows.Scan(&o.ID, &o.OwnerID, &o.Title, &o.Description, &deadline, &o.Category, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("目標行の読み込みに失敗しました: %w", err)
		}
		if deadline.Valid {
			o.Deadline = deadline.Time
		}
		objectives = append(objectives, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("目標一覧の走査に失敗しました: %w", err)
	}

	return objectives, nil
}

// Create は目標を作成する。
func (r *PostgresObjectiveRepo) Create(ctx context.Context, objective *model.Objective) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO objectives (id, user_id, title, description, deadline, category, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		objective.ID, objective.OwnerID, objective.Title, objective.Description,
		nullTime(objective.Deadline), objective.Category, objective.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("目標の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateScoped はidと所有者の両方が一致する行を部分更新し、更新後の行を返す。
// nilフィールドは変更しない。該当行が存在しない場合はnilを返す。
// 未存在と他者所有を区別しないのはAPI契約上の要請でもある。
func (r *PostgresObjectiveRepo) UpdateScoped(ctx context.Context, id, ownerID string, fields ObjectiveUpdate) (*model.Objective, error) {
	o := &model.Objective{}
	var deadline sql.NullTime

	var newDeadline sql.NullTime
	if fields.Deadline != nil {
		newDeadline = sql.NullTime{Time: *fields.Deadline, Valid: true}
	}
	var newCategory sql.NullString
	if fields.Category != nil {
		newCategory = sql.NullString{String: string(*fields.Category), Valid: true}
	}

	err := r.db.QueryRowContext(ctx,
		`UPDATE objectives SET
		    title       = COALESCE($3, title),
		    description = COALESCE($4, description),
		    deadline    = COALESCE($5, deadline),
		    category    = COALESCE($6, category)
		 WHERE id = $1 AND user_id = $2
		 RETURNING id, user_id, title, description, deadline, category, created_at`,
		id, ownerID,
		nullStringPtr(fields.Title), nullStringPtr(fields.Description),
		newDeadline, newCategory,
	).Scan(&o.ID, &o.OwnerID, &o.Title, &o.Description, &deadline, &o.Category, &o.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("目標の更新に失敗しました: %w", err)
	}

	if deadline.Valid {
		o.Deadline = deadline.Time
	}
	return o, nil
}

// DeleteScoped はidと所有者の両方が一致する行を削除し、削除行数を返す。
func (r *PostgresObjectiveRepo) DeleteScoped(ctx context.Context, id, ownerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM objectives WHERE id = $1 AND user_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return 0, fmt.Errorf("目標の削除に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除行数の取得に失敗しました: %w", err)
	}
	return affected, nil
}

// nullTime はゼロ値のtime.Timeをsql.NullTimeに変換する。
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// nullStringPtr はnilポインタをsql.NullStringに変換する。
func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
