package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/extraction"
	"github.com/joseph-ayodele/tax-portal/internal/session"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func newExtractionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extraction <document-id>",
		Short: "Show the extracted fields of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid document id %q", args[0])
			}
			doc, err := a.client.GetDocument(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s\n\n", doc.DocumentType.Label(), doc.FilePath)
			if doc.Extraction.Pending() {
				fmt.Fprintln(out, "Extraction is still processing.")
				return nil
			}
			printExtraction(out, extraction.Render(doc.Extraction))
			return nil
		},
	}
}

func newDashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "List documents, receipts and tax returns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Teardown()
			printDashboard(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func printDashboard(w io.Writer, st *session.Store) {
	id := st.Identity()
	fmt.Fprintf(w, "Account #%d (%s)\n\n", id.UserID, id.UserType)

	tw := newTable(w)
	fmt.Fprintln(tw, "DOCUMENT\tTYPE\tUPLOADED\tEXTRACTED")
	for _, d := range st.Documents() {
		extracted := "pending"
		if !d.Extraction.Pending() {
			extracted = "yes"
		}
		fmt.Fprintf(tw, "#%d\t%s\t%s\t%s\n", d.ID, d.DocumentType.Label(), d.UploadedAt.Format(time.DateOnly), extracted)
	}
	_ = tw.Flush()
	fmt.Fprintln(w)

	tw = newTable(w)
	fmt.Fprintln(tw, "RECEIPT\tCATEGORY\tAMOUNT\tDATE")
	for _, r := range st.Receipts() {
		fmt.Fprintf(tw, "#%d\t%s\t%s\t%s\n", r.ID, r.Category, r.Amount.Display(), r.Date)
	}
	_ = tw.Flush()
	fmt.Fprintln(w)

	tw = newTable(w)
	fmt.Fprintln(tw, "RETURN\tYEAR\tSTATUS")
	for _, r := range st.Returns() {
		fmt.Fprintf(tw, "#%d\t%d\t%s\n", r.ID, r.Year, r.Status)
	}
	_ = tw.Flush()

	if st.IsCPA() {
		fmt.Fprintln(w)
		tw = newTable(w)
		fmt.Fprintln(tw, "CLIENT\tNAME\tEMAIL\tTYPE")
		for _, c := range st.Clients() {
			fmt.Fprintf(tw, "#%d\t%s\t%s\t%s\n", c.ID, c.DisplayName(), c.Email, c.UserType)
		}
		_ = tw.Flush()
	}
}

func newReturnsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "returns",
		Short: "Create tax returns and update their status",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <year>",
		Short: "Start a tax return for a year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year %q", args[0])
			}
			st, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Teardown()
			tr, err := st.CreateReturn(cmd.Context(), year)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d return #%d (%s)\n", tr.Year, tr.ID, tr.Status)
			return nil
		},
	}, &cobra.Command{
		Use:   "status <return-id> <draft|in_review|filed>",
		Short: "Move a tax return to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid return id %q", args[0])
			}
			status := constants.ReturnStatus(args[1])
			if !status.Valid() {
				return fmt.Errorf("unknown status %q", args[1])
			}
			tr, err := a.client.UpdateReturnStatus(cmd.Context(), id, status)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Return #%d is now %s\n", tr.ID, tr.Status)
			return nil
		},
	})
	return cmd
}
