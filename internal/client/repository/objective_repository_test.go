package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hitoshi/taskman/internal/client/remote"
	"github.com/hitoshi/taskman/internal/model"
)

// mockTable はremote.ObjectiveTableのモック実装。
type mockTable struct {
	selectFn func(ctx context.Context) ([]model.Objective, error)
	insertFn func(ctx context.Context, fields remote.ObjectiveFields) (*model.Objective, error)
	updateFn func(ctx context.Context, id string, changes remote.ObjectiveChanges) (*model.Objective, error)
	deleteFn func(ctx context.Context, id string) error
	calls    int
}

func (m *mockTable) Select(ctx context.Context) ([]model.Objective, error) {
	m.calls++
	return m.selectFn(ctx)
}

func (m *mockTable) Insert(ctx context.Context, fields remote.ObjectiveFields) (*model.Objective, error) {
	m.calls++
	return m.insertFn(ctx, fields)
}

func (m *mockTable) Update(ctx context.Context, id string, changes remote.ObjectiveChanges) (*model.Objective, error) {
	m.calls++
	return m.updateFn(ctx, id, changes)
}

func (m *mockTable) Delete(ctx context.Context, id string) error {
	m.calls++
	return m.deleteFn(ctx, id)
}

// staticSession は固定のセッションを返すSessionReader。
type staticSession struct {
	session model.Session
}

func (s *staticSession) GetSession() model.Session {
	return s.session
}

// authedSession は認証済みのSessionReaderを返す。
func authedSession(id string) *staticSession {
	return &staticSession{session: model.Session{
		Identity: &model.Identity{ID: id, Email: id + "@example.com"},
		IsValid:  true,
	}}
}

// validFields はテスト用の有効な作成入力を返す。
func validFields() remote.ObjectiveFields {
	return remote.ObjectiveFields{
		Title:       "Work",
		Description: "Report",
		Deadline:    time.Date(2024, 11, 24, 0, 0, 0, 0, time.UTC),
		Category:    model.CategoryWork,
	}
}

// TestLoadAll_Unauthenticated は未認証時にリモート呼び出しなしで
// ErrUnauthenticatedが返ることを確認する。
func TestLoadAll_Unauthenticated(t *testing.T) {
	table := &mockTable{}
	repo := NewObjectiveRepository(table, &staticSession{session: model.SignedOut()})

	_, err := repo.LoadAll(context.Background())
	if !errors.Is(err, model.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
	if table.calls != 0 {
		t.Error("expected no remote call while unauthenticated")
	}
}

// TestCreate_Unauthenticated は未認証での作成がリモート呼び出しなしで
// 拒否されることを確認する。
func TestCreate_Unauthenticated(t *testing.T) {
	table := &mockTable{}
	repo := NewObjectiveRepository(table, &staticSession{session: model.SignedOut()})

	_, err := repo.Create(context.Background(), validFields())
	if !errors.Is(err, model.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
	if table.calls != 0 {
		t.Error("expected no remote call while unauthenticated")
	}
}

// TestLoadAll_DiscardsForeignRows は所有者が一致しない行が破棄されることを確認する。
func TestLoadAll_DiscardsForeignRows(t *testing.T) {
	table := &mockTable{
		selectFn: func(_ context.Context) ([]model.Objective, error) {
			return []model.Objective{
				{ID: "obj-1", OwnerID: "account-1", Title: "mine"},
				{ID: "obj-2", OwnerID: "account-other", Title: "not mine"},
			}, nil
		},
	}
	repo := NewObjectiveRepository(table, authedSession("account-1"))

	objectives, err := repo.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(objectives) != 1 || objectives[0].ID != "obj-1" {
		t.Errorf("expected only owned objectives, got %v", objectives)
	}
}

// TestLoadAll_EmptyIsNotError は0件の結果が有効な非エラー結果であることを確認する。
func TestLoadAll_EmptyIsNotError(t *testing.T) {
	table := &mockTable{
		selectFn: func(_ context.Context) ([]model.Objective, error) {
			return []model.Objective{}, nil
		},
	}
	repo := NewObjectiveRepository(table, authedSession("account-1"))

	objectives, err := repo.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if objectives == nil || len(objectives) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", objectives)
	}
}

// TestCreate_ValidationBeforeRemote は入力違反がリモート呼び出し前に
// 拒否されることを確認する。
func TestCreate_ValidationBeforeRemote(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *remote.ObjectiveFields)
	}{
		{name: "空のタイトル", mutate: func(f *remote.ObjectiveFields) { f.Title = "" }},
		{name: "空の説明", mutate: func(f *remote.ObjectiveFields) { f.Description = "" }},
		{name: "期限なし", mutate: func(f *remote.ObjectiveFields) { f.Deadline = time.Time{} }},
		{name: "不正なカテゴリ", mutate: func(f *remote.ObjectiveFields) { f.Category = "hobby" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := &mockTable{}
			repo := NewObjectiveRepository(table, authedSession("account-1"))

			fields := validFields()
			tt.mutate(&fields)

			_, err := repo.Create(context.Background(), fields)
			if !errors.Is(err, model.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
			if table.calls != 0 {
				t.Error("expected no remote call for invalid input")
			}
		})
	}
}

// TestCreate_ReturnsServerAssignedRecord は作成成功でサーバー採番のIDと
// createdAtを含む完全なレコードが返ることを確認する。
func TestCreate_ReturnsServerAssignedRecord(t *testing.T) {
	now := time.Now()
	table := &mockTable{
		insertFn: func(_ context.Context, fields remote.ObjectiveFields) (*model.Objective, error) {
			return &model.Objective{
				ID:          "obj-new",
				OwnerID:     "account-1",
				Title:       fields.Title,
				Description: fields.Description,
				Deadline:    fields.Deadline,
				Category:    fields.Category,
				CreatedAt:   now,
			}, nil
		},
	}
	repo := NewObjectiveRepository(table, authedSession("account-1"))

	created, err := repo.Create(context.Background(), validFields())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != "obj-new" {
		t.Errorf("expected server-assigned id, got %s", created.ID)
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected server-assigned created_at")
	}
}

// TestUpdate_ZeroRowsIsNotFound はゼロ行更新がErrNotFoundとして返ることを確認する。
// 未存在と他者所有は区別されない。
func TestUpdate_ZeroRowsIsNotFound(t *testing.T) {
	table := &mockTable{
		updateFn: func(_ context.Context, _ string, _ remote.ObjectiveChanges) (*model.Objective, error) {
			return nil, fmt.Errorf("zero rows: %w", model.ErrNotFound)
		},
	}
	repo := NewObjectiveRepository(table, authedSession("account-1"))

	title := "t"
	_, err := repo.Update(context.Background(), "obj-x", remote.ObjectiveChanges{Title: &title})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestDelete_Idempotent は存在しないIDの削除がエラーにならないことを確認する。
func TestDelete_Idempotent(t *testing.T) {
	table := &mockTable{
		deleteFn: func(_ context.Context, _ string) error {
			return fmt.Errorf("zero rows: %w", model.ErrNotFound)
		},
	}
	repo := NewObjectiveRepository(table, authedSession("account-1"))

	if err := repo.Delete(context.Background(), "already-gone"); err != nil {
		t.Errorf("expected idempotent delete, got %v", err)
	}
}

// TestIdentityReadFreshPerCall はIdentityが呼び出しごとにセッションから
// 取得されることを確認する。
func TestIdentityReadFreshPerCall(t *testing.T) {
	sess := authedSession("account-1")
	table := &mockTable{
		deleteFn: func(_ context.Context, _ string) error { return nil },
	}
	repo := NewObjectiveRepository(table, sess)

	if err := repo.Delete(context.Background(), "obj-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// セッションが失効した後の呼び出しは拒否される
	sess.session = model.SignedOut()
	if err := repo.Delete(context.Background(), "obj-1"); !errors.Is(err, model.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated after session loss, got %v", err)
	}
}
