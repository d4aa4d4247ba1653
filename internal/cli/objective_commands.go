package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitoshi/taskman/internal/client/objective"
	"github.com/hitoshi/taskman/internal/client/remote"
	"github.com/hitoshi/taskman/internal/model"
)

// CLIで受け付ける期限の書式
const deadlineArgLayout = "2006-01-02"

func newListCommand(w io.Writer, newApp appFactory) *cobra.Command {
	var groupBy string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List objectives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.reconciler.Load(cmd.Context()); err != nil {
				return err
			}
			collection := app.reconciler.Collection()

			switch groupBy {
			case "":
				printObjectives(w, collection)
			case "category":
				printGroups(w, objective.Project(collection, objective.GroupByCategory))
			case "deadline":
				printGroups(w, objective.Project(collection, objective.GroupByDeadline))
			default:
				return fmt.Errorf("グループ化の軸が不正です: %s（category または deadline）: %w", groupBy, model.ErrValidation)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&groupBy, "group-by", "", "Group objectives by category or deadline")
	return cmd
}

func newAddCommand(w io.Writer, newApp appFactory) *cobra.Command {
	var (
		title       string
		description string
		deadlineStr string
		category    string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a new objective",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deadline, err := parseDeadlineArg(deadlineStr)
			if err != nil {
				return err
			}

			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.reconciler.Load(cmd.Context()); err != nil {
				return err
			}

			created, err := app.reconciler.ApplyCreate(cmd.Context(), remote.ObjectiveFields{
				Title:       title,
				Description: description,
				Deadline:    deadline,
				Category:    model.Category(category),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(w, "Created objective %s.\n", created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Objective title")
	cmd.Flags().StringVar(&description, "description", "", "Objective description")
	cmd.Flags().StringVar(&deadlineStr, "deadline", "", "Deadline in YYYY-MM-DD format")
	cmd.Flags().StringVar(&category, "category", "", "Category (work, home or personal)")
	return cmd
}

func newEditCommand(w io.Writer, newApp appFactory) *cobra.Command {
	var (
		title       string
		description string
		deadlineStr string
		category    string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Update fields of an objective",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var changes remote.ObjectiveChanges
			if cmd.Flags().Changed("title") {
				changes.Title = &title
			}
			if cmd.Flags().Changed("description") {
				changes.Description = &description
			}
			if cmd.Flags().Changed("deadline") {
				// 空文字列の指定は期限のクリア
				deadline, err := parseDeadlineArg(deadlineStr)
				if err != nil {
					return err
				}
				changes.Deadline = &deadline
			}
			if cmd.Flags().Changed("category") {
				c := model.Category(category)
				changes.Category = &c
			}

			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.reconciler.Load(cmd.Context()); err != nil {
				return err
			}

			updated, err := app.reconciler.ApplyUpdate(cmd.Context(), args[0], changes)
			if err != nil {
				return err
			}

			fmt.Fprintf(w, "Updated objective %s.\n", updated.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&deadlineStr, "deadline", "", "New deadline in YYYY-MM-DD format, empty to clear")
	cmd.Flags().StringVar(&category, "category", "", "New category (work, home or personal)")
	return cmd
}

func newDeleteCommand(w io.Writer, newApp appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an objective",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.reconciler.Load(cmd.Context()); err != nil {
				return err
			}

			if err := app.reconciler.ApplyDelete(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Fprintf(w, "Deleted objective %s.\n", args[0])
			return nil
		},
	}
}

// parseDeadlineArg はYYYY-MM-DD書式の期限を解析する。空文字列は未設定を表す。
func parseDeadlineArg(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	deadline, err := time.Parse(deadlineArgLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("期限はYYYY-MM-DD形式で指定してください: %s: %w", s, model.ErrValidation)
	}
	return deadline, nil
}

// printObjectives はコレクションを表形式で出力する。
func printObjectives(w io.Writer, collection []model.Objective) {
	if len(collection) == 0 {
		fmt.Fprintln(w, "No objectives.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tDEADLINE")
	for _, o := range collection {
		deadline := "-"
		if o.HasDeadline() {
			deadline = o.Deadline.UTC().Format(deadlineArgLayout)
		}
		category := string(o.Category)
		if category == "" {
			category = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.ID, o.Title, category, deadline)
	}
	tw.Flush()
}

// printGroups はグループ化ビューを見出し付きで出力する。
func printGroups(w io.Writer, groups []objective.Group) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No objectives.")
		return
	}

	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%d)\n", g.Key, len(g.Objectives))
		for _, o := range g.Objectives {
			fmt.Fprintf(w, "  %s  %s\n", o.ID, o.Title)
		}
	}
}
