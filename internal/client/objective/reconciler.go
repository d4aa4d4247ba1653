// Package objective はリモート操作の結果をローカルコレクションへ反映する
// List Reconcilerと、コレクションのグループ化ビューを導出するGrouping
// Projectorを提供する。
package objective

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/taskman/internal/client/remote"
	"github.com/hitoshi/taskman/internal/model"
)

// State はReconcilerの状態を表す。
type State int

const (
	// StateEmpty は初回ロード前の初期状態。
	StateEmpty State = iota
	// StateLoading はロード実行中。
	StateLoading
	// StateReady は実体化されたコレクションを保持している状態。
	StateReady
	// StateError はロード失敗。直前にReadyだった場合、そのコレクションは
	// 表示継続のため保持される。
	StateError
)

// String はStateの文字列表現を返す。
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Repository はReconcilerが必要とするリポジトリインターフェース。
// repository.ObjectiveRepositoryの部分集合として定義する。
type Repository interface {
	LoadAll(ctx context.Context) ([]model.Objective, error)
	Create(ctx context.Context, fields remote.ObjectiveFields) (*model.Objective, error)
	Update(ctx context.Context, id string, changes remote.ObjectiveChanges) (*model.Objective, error)
	Delete(ctx context.Context, id string) error
}

// Reconciler は現在のセッションの目標コレクションをメモリ上で所有する。
//
// コレクションの変更はReconcilerのみが行う。UIとProjectorは読み取るだけで
// 直接変更しない。
//
// 同一IDに対する操作は重複実行できず、2件目はErrOperationInFlightで拒否
// される。異なるIDへの操作は独立しており並行に実行してよい。完了順は
// 発行順と一致しなくてよく、各操作は自身のレスポンスのIDに基づいて適用
// される（last response wins）。
//
// 世代番号によるステイルレスポンスガードを持つ。Resetやロードのやり直しで
// 世代が進むと、それ以前に発行された操作の結果は適用されず破棄される。
type Reconciler struct {
	repo Repository

	mu         sync.Mutex
	state      State
	collection []model.Objective
	generation uint64
	inflight   map[string]struct{}
	lastErr    error
}

// NewReconciler はReconcilerを生成する。初期状態はEmpty。
func NewReconciler(repo Repository) *Reconciler {
	return &Reconciler{
		repo:     repo,
		state:    StateEmpty,
		inflight: make(map[string]struct{}),
	}
}

// State は現在の状態を返す。
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err は最後のロード失敗のエラーを返す。Ready遷移でクリアされる。
func (r *Reconciler) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Collection は現在のコレクションのコピーを返す。
func (r *Reconciler) Collection() []model.Objective {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Objective, len(r.collection))
	copy(out, r.collection)
	return out
}

// Load はコレクションを全件ロードする。
// Loadingへ遷移し、成功するとReadyとして返却シーケンスを保持する。
// 失敗した場合はErrorへ遷移するが、直前のReadyコレクションは表示継続の
// ため保持される。
func (r *Reconciler) Load(ctx context.Context) error {
	r.mu.Lock()
	r.state = StateLoading
	gen := r.generation
	r.mu.Unlock()

	loaded, err := r.repo.LoadAll(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.generation {
		// ロード中にリセットされた。結果は生きていないコレクションに
		// 適用せず破棄する
		return fmt.Errorf("load result discarded: %w", model.ErrStaleCollection)
	}

	if err != nil {
		r.state = StateError
		r.lastErr = err
		return err
	}

	r.state = StateReady
	r.lastErr = nil
	r.collection = loaded
	return nil
}

// ApplyCreate は目標を作成し、成功時に返却レコードをコレクション末尾へ
// 追加する。表示順はデフォルトで挿入順のため、再ソートはしない。
// リモートが確定するまでコレクションは変更しない（楽観的挿入はしない）。
// レコードのキーとなるIDはリモートが採番するためである。
func (r *Reconciler) ApplyCreate(ctx context.Context, fields remote.ObjectiveFields) (*model.Objective, error) {
	r.mu.Lock()
	gen := r.generation
	r.mu.Unlock()

	created, err := r.repo.Create(ctx, fields)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.generation {
		return nil, fmt.Errorf("create result discarded: %w", model.ErrStaleCollection)
	}

	r.collection = append(r.collection, *created)
	return created, nil
}

// ApplyUpdate は目標を更新し、成功時に一致する要素を同じ位置のまま返却
// レコードで置き換える。
// 要素がローカルに見つからない場合（他セッションが並行して削除した等）、
// 更新結果は破棄され、新しい要素の挿入は行わず、ErrStaleCollectionを返す。
func (r *Reconciler) ApplyUpdate(ctx context.Context, id string, changes remote.ObjectiveChanges) (*model.Objective, error) {
	if err := r.acquire(id); err != nil {
		return nil, err
	}
	defer r.release(id)

	r.mu.Lock()
	gen := r.generation
	r.mu.Unlock()

	updated, err := r.repo.Update(ctx, id, changes)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.generation {
		return nil, fmt.Errorf("update result discarded: %w", model.ErrStaleCollection)
	}

	for i := range r.collection {
		if r.collection[i].ID == id {
			r.collection[i] = *updated
			return updated, nil
		}
	}

	slog.Warn("updated objective no longer present in local collection",
		slog.String("objective_id", id),
	)
	return nil, fmt.Errorf("updated objective %s not in local collection: %w", id, model.ErrStaleCollection)
}

// ApplyDelete は目標を削除し、成功時（冪等な空振りを含む）に一致する要素を
// コレクションから取り除く。
func (r *Reconciler) ApplyDelete(ctx context.Context, id string) error {
	if err := r.acquire(id); err != nil {
		return err
	}
	defer r.release(id)

	r.mu.Lock()
	gen := r.generation
	r.mu.Unlock()

	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.generation {
		return fmt.Errorf("delete result discarded: %w", model.ErrStaleCollection)
	}

	for i := range r.collection {
		if r.collection[i].ID == id {
			r.collection = append(r.collection[:i], r.collection[i+1:]...)
			break
		}
	}
	return nil
}

// Reset はコレクションを破棄して初期状態へ戻す。
// ログアウトやセッション喪失時に呼ぶ。世代が進むため、実行中の操作の
// 結果は適用されずに破棄される。
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateEmpty
	r.collection = nil
	r.lastErr = nil
	r.generation++
}

// acquire は指定IDの操作ゲートを取得する。既に同一IDの操作が実行中の
// 場合はErrOperationInFlightを返す。
func (r *Reconciler) acquire(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.inflight[id]; exists {
		return fmt.Errorf("objective %s: %w", id, model.ErrOperationInFlight)
	}
	r.inflight[id] = struct{}{}
	return nil
}

// release は指定IDの操作ゲートを解放する。
func (r *Reconciler) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, id)
}
