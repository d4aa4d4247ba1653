package app

import "testing"

// TestParseCommand はサブコマンドの解析を確認する。
func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{name: "引数なしはserve", args: nil, want: CommandServe},
		{name: "serve指定", args: []string{"serve"}, want: CommandServe},
		{name: "migrate指定", args: []string{"migrate"}, want: CommandMigrate},
		{name: "healthcheck指定", args: []string{"healthcheck"}, want: CommandHealthcheck},
		{name: "未知のコマンドはserve", args: []string{"unknown"}, want: CommandServe},
		{name: "後続引数は無視", args: []string{"migrate", "--force"}, want: CommandMigrate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.args); got != tt.want {
				t.Errorf("ParseCommand(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}
