package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tax-portal/internal/billing"
	"github.com/joseph-ayodele/tax-portal/internal/catalog"
	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/notice"
	"github.com/joseph-ayodele/tax-portal/internal/payment"
)

// orchestrator loads plans, services and the current subscription.
func (a *app) orchestrator(ctx context.Context) (*billing.Orchestrator, error) {
	tokenizerURL := a.cfg.TokenizerURL
	if tokenizerURL == "" {
		tokenizerURL = a.cfg.APIURL
	}
	tok := payment.NewHTTPTokenizer(tokenizerURL, a.cfg.PublishableKey,
		&http.Client{Timeout: a.cfg.HTTPTimeout}, a.logger)
	o := billing.New(a.client, tok,
		billing.WithLogger(a.logger),
		billing.WithRetry(a.cfg.RetryAttempts, a.cfg.RetryBaseDelay),
		billing.WithNotices(notice.NewBoard(notice.WithTTL(a.cfg.NoticeTTL))),
	)
	if err := o.Load(ctx); err != nil {
		return nil, noticeOr(o, err)
	}
	return o, nil
}

// noticeOr returns the error notice the orchestrator raised, or err.
func noticeOr(o *billing.Orchestrator, err error) error {
	if n, ok := o.Notices().Current(notice.Error); ok {
		return errors.New(n.Message)
	}
	return err
}

func printSuccess(w io.Writer, o *billing.Orchestrator) {
	if n, ok := o.Notices().Current(notice.Success); ok {
		fmt.Fprintln(w, n.Message)
	}
}

func newPlansCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List subscription plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := a.orchestrator(cmd.Context())
			if err != nil {
				return err
			}
			defer o.Notices().Close()
			snap := o.Snapshot()
			out := cmd.OutOrStdout()
			tw := newTable(out)
			fmt.Fprintln(tw, "PLAN\tNAME\tPRICE\tFEATURES\t")
			for _, p := range snap.Plans {
				current := ""
				if snap.IsCurrentPlan(p.ID) {
					current = "(current)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s/mo\t%s\t%s\n", p.ID, p.Name, p.Price.Display(),
					strings.Join(p.Features, ", "), current)
			}
			_ = tw.Flush()
			if sub := snap.Subscription; sub != nil {
				style := catalog.PlanStyle(sub.PlanType)
				fmt.Fprintf(out, "\nSubscribed to %s [%s] until %s\n", sub.PlanType, style.Icon, sub.EndDate.Format(time.DateOnly))
			}
			return nil
		},
	}
}

func newServicesCmd(a *app) *cobra.Command {
	var buy string
	cmd := &cobra.Command{
		Use:   "services",
		Short: "List one-time professional services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := a.orchestrator(cmd.Context())
			if err != nil {
				return err
			}
			defer o.Notices().Close()
			out := cmd.OutOrStdout()
			if buy != "" {
				msg, err := o.PurchaseService(buy)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, msg)
				return nil
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "SERVICE\tNAME\tPRICE\tDESCRIPTION")
			for _, s := range o.Snapshot().Services {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Price.Display(), s.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&buy, "buy", "", "service id to purchase")
	return cmd
}

func newSubscribeCmd(a *app) *cobra.Command {
	var card payment.Card
	cmd := &cobra.Command{
		Use:   "subscribe <plan>",
		Short: "Subscribe to a plan with a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.orchestrator(cmd.Context())
			if err != nil {
				return err
			}
			defer o.Notices().Close()
			if err := o.SelectPlan(args[0]); err != nil {
				return err
			}
			sub, err := o.SubmitPayment(cmd.Context(), card)
			if err != nil {
				return noticeOr(o, err)
			}
			out := cmd.OutOrStdout()
			printSuccess(out, o)
			fmt.Fprintf(out, "Plan %s active until %s\n", sub.PlanType, sub.EndDate.Format(time.DateOnly))
			return nil
		},
	}
	cmd.Flags().StringVar(&card.Number, "card", "", "card number")
	cmd.Flags().IntVar(&card.ExpMonth, "exp-month", 0, "expiry month")
	cmd.Flags().IntVar(&card.ExpYear, "exp-year", 0, "expiry year")
	cmd.Flags().StringVar(&card.CVC, "cvc", "", "card security code")
	cmd.Flags().StringVar(&card.PostalCode, "zip", "", "billing postal code")
	_ = cmd.MarkFlagRequired("card")
	return cmd
}

func newCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the current subscription",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := a.orchestrator(cmd.Context())
			if err != nil {
				return err
			}
			defer o.Notices().Close()
			if err := o.Cancel(cmd.Context()); err != nil {
				if errors.Is(err, common.ErrNoSubscription) {
					return errors.New("You have no active subscription")
				}
				return noticeOr(o, err)
			}
			printSuccess(cmd.OutOrStdout(), o)
			return nil
		},
	}
}

func newPaymentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "payments",
		Short: "Show payment history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := a.client.PaymentHistory(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "DATE\tAMOUNT\tSTATUS\tTRANSACTION")
			for _, p := range history {
				fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\n", p.CreatedAt.Format(time.DateOnly),
					p.Amount.Display(), strings.ToUpper(p.Currency), p.Status, p.TransactionID)
			}
			return tw.Flush()
		},
	}
}
