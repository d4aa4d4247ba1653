package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

// appFactory はクライアントコンポーネント一式を組み立てる。
// テストでは接続先を差し替えるために置き換える。
type appFactory func(ctx context.Context) (*clientApp, error)

// NewRootCommand はCLIのルートコマンドを構築する。
func NewRootCommand(w io.Writer) *cobra.Command {
	return newRootCommand(w, newClientApp)
}

func newRootCommand(w io.Writer, newApp appFactory) *cobra.Command {
	root := &cobra.Command{
		Use:   "taskman-cli",
		Short: "taskman server's command line client",
		Long: `taskman-cli is a command line client for the taskman server.

Environment Variables:
  TASKMAN_BASE_URL  Server base URL (required)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(w)

	root.AddCommand(
		newRegisterCommand(w, newApp),
		newLoginCommand(w, newApp),
		newLogoutCommand(w, newApp),
		newWhoamiCommand(w, newApp),
		newRecoverCommand(w, newApp),
		newResetPasswordCommand(w, newApp),
		newListCommand(w, newApp),
		newAddCommand(w, newApp),
		newEditCommand(w, newApp),
		newDeleteCommand(w, newApp),
		newRateCommand(w, newApp),
	)
	return root
}

// Execute はルートコマンドを実行する。
func Execute(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.Execute()
}
