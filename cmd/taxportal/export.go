package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/export"
)

func newExportCmd(a *app) *cobra.Command {
	var out, from, to string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write documents, receipts and returns to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var w export.Window
			if from != "" {
				t, err := time.Parse(time.DateOnly, from)
				if err != nil {
					return fmt.Errorf("invalid --from date, use YYYY-MM-DD")
				}
				w.From = &t
			}
			if to != "" {
				t, err := time.Parse(time.DateOnly, to)
				if err != nil {
					return fmt.Errorf("invalid --to date, use YYYY-MM-DD")
				}
				w.To = &t
			}

			st, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Teardown()

			data, stats, err := export.NewService(st, a.logger).WorkbookXLSX(cmd.Context(), w)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return common.WrapError(err, "write workbook")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %d documents, %d receipts, %d returns\n",
				out, stats.Documents, stats.Receipts, stats.Returns)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "taxportal.xlsx", "output workbook path")
	cmd.Flags().StringVar(&from, "from", "", "earliest receipt date YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "latest receipt date YYYY-MM-DD")
	return cmd
}
