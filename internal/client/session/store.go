// Package session は現在の認証状態を保持するSession Storeを提供する。
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/taskman/internal/client/remote"
	"github.com/hitoshi/taskman/internal/model"
)

// Store は現在の認証済みIdentity（または未認証状態）を保持する。
//
// リモートの認証状態遷移イベントを1本の購読で受け取り、保持するSessionを
// 全置換した上で、自身の購読者へ受信順に中継する。
// インスタンスごとにリモートへの購読はちょうど1つであり、Closeで解放する。
type Store struct {
	api remote.AuthAPI

	mu      sync.RWMutex
	current model.Session
	closed  bool

	listenerMu    sync.Mutex
	listeners     map[int]remote.ListenerFunc
	listenerOrder []int
	nextID        int

	remoteUnsubscribe func()
	closeOnce         sync.Once
}

// NewStore はStoreを生成し、リモートの認証状態遷移の購読を開始する。
// 所有スコープの終了時には必ずCloseを呼ぶこと。
func NewStore(api remote.AuthAPI) *Store {
	s := &Store{
		api:       api,
		current:   model.SignedOut(),
		listeners: make(map[int]remote.ListenerFunc),
	}

	s.remoteUnsubscribe = api.OnAuthStateChange(s.handleAuthEvent)
	return s
}

// GetSession は最後に確認したSessionを副作用なしで返す。
func (s *Store) GetSession() model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Initialize はリモートの現在のセッション状態を1回取得して保持する。
// トランスポートエラーはソフトに降格する。未認証ビューは常に安全な
// デフォルトであるため、エラーを伝播せず無効セッションを返す。
func (s *Store) Initialize(ctx context.Context) model.Session {
	session, err := s.api.GetSession(ctx)
	if err != nil {
		slog.Warn("session initialization failed, falling back to signed-out",
			slog.String("error", err.Error()),
		)
		session = model.SignedOut()
	}

	s.replace(session)
	return session
}

// Refresh はトークンの更新を試みる。
// 失敗した場合は無効セッションへ遷移し、回復可能なイベントとしてログに
// 記録する。UIをブロックしないため、エラーは返さない。
func (s *Store) Refresh(ctx context.Context) model.Session {
	session, err := s.api.RefreshSession(ctx)
	if err != nil {
		slog.Warn("session refresh failed, downgrading to signed-out",
			slog.String("error", err.Error()),
		)
		session = model.SignedOut()
		s.replace(session)
		return session
	}

	// 成功時はリモートからtoken_refreshedイベントが届き、
	// handleAuthEvent経由で保持状態が置き換わる
	s.replace(session)
	return session
}

// Subscribe は認証状態遷移の通知を購読する。
// コールバックはリモートがイベントを発行した順に同期的に呼び出される。
// 返された解除関数は冪等であり、Store破棄後の呼び出しも安全。
func (s *Store) Subscribe(listener remote.ListenerFunc) (unsubscribe func()) {
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.listenerOrder = append(s.listenerOrder, id)
	s.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenerMu.Lock()
			delete(s.listeners, id)
			s.listenerMu.Unlock()
		})
	}
}

// Close はリモートへの購読を解放する。冪等。
// Close後に届いたイベントは破棄される。
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.remoteUnsubscribe != nil {
			s.remoteUnsubscribe()
		}
	})
}

// handleAuthEvent はリモートからの認証状態遷移を処理する。
// 保持するSessionを全置換し、購読者へ受信順に中継する。
func (s *Store) handleAuthEvent(event model.AuthEvent, session model.Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.current = session
	s.mu.Unlock()

	s.listenerMu.Lock()
	ordered := make([]remote.ListenerFunc, 0, len(s.listeners))
	for _, id := range s.listenerOrder {
		if fn, ok := s.listeners[id]; ok {
			ordered = append(ordered, fn)
		}
	}
	s.listenerMu.Unlock()

	for _, fn := range ordered {
		fn(event, session)
	}
}

// replace は保持するSessionを全置換する。部分的なマージは行わない。
func (s *Store) replace(session model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.current = session
}
