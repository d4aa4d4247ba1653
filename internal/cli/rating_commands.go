package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hitoshi/taskman/internal/model"
)

func newRateCommand(w io.Writer, newApp appFactory) *cobra.Command {
	var showSummary bool

	cmd := &cobra.Command{
		Use:   "rate [stars]",
		Short: "Submit a product rating from 1 to 5 stars",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if len(args) == 1 {
				stars, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("評価は数値で指定してください: %s: %w", args[0], model.ErrValidation)
				}
				if err := app.ratings.Submit(cmd.Context(), stars); err != nil {
					return err
				}
				fmt.Fprintf(w, "Submitted a %d star rating.\n", stars)
			}

			if showSummary || len(args) == 0 {
				summary, err := app.ratings.Summary(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "Average %.1f stars from %d ratings.\n", summary.Average, summary.Total)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSummary, "summary", false, "Show the rating summary after submitting")
	return cmd
}
