// Package cli はタスク管理クライアントのコマンドラインインターフェースを提供する。
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Credentials は永続化されるトークンの組を表す。
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// CredentialsStore は資格情報ファイルの読み書きを行う。
// ファイルはユーザーのみ読み書き可能なパーミッションで保存する。
type CredentialsStore struct {
	path string
}

// NewCredentialsStore は指定パスのCredentialsStoreを生成する。
func NewCredentialsStore(path string) *CredentialsStore {
	return &CredentialsStore{path: path}
}

// DefaultCredentialsPath はユーザー設定ディレクトリ配下の既定の
// 資格情報ファイルパスを返す。
func DefaultCredentialsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("設定ディレクトリを特定できません: %w", err)
	}
	return filepath.Join(dir, "taskman", "credentials.json"), nil
}

// Load は保存済みの資格情報を読み込む。未保存の場合はnilを返し、
// エラーではない。
func (s *CredentialsStore) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("資格情報の読み込みに失敗しました: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("資格情報の解析に失敗しました: %w", err)
	}
	return &creds, nil
}

// Save は資格情報を保存する。親ディレクトリが無ければ作成する。
func (s *CredentialsStore) Save(creds Credentials) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("設定ディレクトリの作成に失敗しました: %w", err)
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("資格情報の書き込みに失敗しました: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("資格情報の書き込みに失敗しました: %w", err)
	}
	return nil
}

// Clear は保存済みの資格情報を削除する。未保存の場合は何もしない。
func (s *CredentialsStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("資格情報の削除に失敗しました: %w", err)
	}
	return nil
}
