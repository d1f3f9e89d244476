package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/extraction"
	"github.com/joseph-ayodele/tax-portal/internal/session"
	"github.com/joseph-ayodele/tax-portal/internal/upload"
)

func newUploadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a document or receipt",
		Long:  "Upload a document or receipt. Accepted files: " + constants.AcceptList() + ".",
	}
	cmd.AddCommand(newUploadDocumentCmd(a), newUploadReceiptCmd(a))
	return cmd
}

// uploadSession builds a session that refreshes st after a successful upload.
func (a *app) uploadSession(kind upload.Kind, st *session.Store) *upload.Session {
	return upload.NewSession(kind, a.client,
		upload.WithLogger(a.logger),
		upload.WithRefresher(st),
		upload.WithMaxBytes(a.cfg.MaxUploadBytes),
		upload.WithPolling(a.cfg.ExtractionPollInterval, a.cfg.ExtractionPollAttempts),
	)
}

func newUploadDocumentCmd(a *app) *cobra.Command {
	var (
		docType string
		wait    bool
	)
	cmd := &cobra.Command{
		Use:   "document <file>",
		Short: "Upload a tax document for extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.store(ctx)
			if err != nil {
				return err
			}
			defer st.Teardown()
			s := a.uploadSession(upload.KindDocument, st)

			f, err := upload.FromPath(args[0])
			if err != nil {
				return err
			}
			if err := s.Select(f); err != nil {
				return err
			}
			if docType != "" {
				t, ok := constants.ParseDocumentType(docType)
				if !ok {
					return fmt.Errorf("unknown document type %q", docType)
				}
				if err := s.SetDocumentType(t); err != nil {
					return err
				}
			}
			res, err := s.Submit(ctx)
			if err != nil {
				return submitError(s, err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Uploaded %s as document #%d (%s)\n",
				f.Name, res.Document.ID, res.Document.DocumentType.Label())
			fmt.Fprintf(out, "Documents on file: %d\n", len(st.Documents()))
			if !wait {
				return nil
			}
			outcome, err := s.AwaitExtraction(ctx)
			if errors.Is(err, upload.ErrExtractionPending) {
				fmt.Fprintln(out, "Extraction is still processing; check again with `taxportal extraction`.")
				return nil
			}
			if err != nil {
				return err
			}
			printExtraction(out, extraction.Render(outcome))
			return nil
		},
	}
	cmd.Flags().StringVarP(&docType, "type", "t", "", "document type ("+documentTypeList()+")")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait for extraction and print the result")
	return cmd
}

func newUploadReceiptCmd(a *app) *cobra.Command {
	var details upload.ReceiptDetails
	cmd := &cobra.Command{
		Use:   "receipt <file>",
		Short: "Upload an expense receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Teardown()
			s := a.uploadSession(upload.KindReceipt, st)
			f, err := upload.FromPath(args[0])
			if err != nil {
				return err
			}
			if err := s.Select(f); err != nil {
				return err
			}
			if err := s.SetReceiptDetails(details); err != nil {
				return err
			}
			res, err := s.Submit(cmd.Context())
			if err != nil {
				return submitError(s, err)
			}
			r := res.Receipt
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Uploaded %s as receipt #%d: %s %s on %s\n",
				f.Name, r.ID, r.Category, r.Amount.Display(), r.Date)
			fmt.Fprintf(out, "Receipts on file: %d\n", len(st.Receipts()))
			return nil
		},
	}
	cmd.Flags().StringVar(&details.Category, "category", "", "expense category: "+strings.Join(constants.AsStringSlice(), ", "))
	cmd.Flags().StringVar(&details.Amount, "amount", "", "amount, e.g. 12.50")
	cmd.Flags().StringVar(&details.Date, "date", "", "receipt date YYYY-MM-DD (default today)")
	return cmd
}

func documentTypeList() string {
	types := constants.DocumentTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// submitError surfaces the message the session recorded for the failure.
func submitError(s *upload.Session, err error) error {
	if msg := s.Snapshot().Error; msg != "" {
		return errors.New(msg)
	}
	return err
}

func printExtraction(w io.Writer, v extraction.View) {
	if v.Empty() {
		fmt.Fprintln(w, "No extracted data.")
		return
	}
	tw := newTable(w)
	for _, row := range v.Rows {
		fmt.Fprintf(tw, "%s:\t%s\n", row.Label, row.Value)
	}
	_ = tw.Flush()
	if v.HasRawText() {
		fmt.Fprintln(w, "\nRaw text:")
		fmt.Fprintln(w, v.RawText)
	}
}
