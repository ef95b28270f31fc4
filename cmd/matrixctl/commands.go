package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fastprodman/matrixledger/internal/app"
	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/services/audit"
	"github.com/fastprodman/matrixledger/internal/services/matrix"
)

func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}

	return id, nil
}

func newAuditCmd(open opener) *cobra.Command {
	var (
		all     bool
		correct bool
	)

	cmd := &cobra.Command{
		Use:   "audit [userID]",
		Short: "Reconcile balances and referral earnings with the ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("pass either a user id or --all")
			}

			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				if all {
					reports, err := a.Auditor.AuditAll(ctx, correct)
					if err != nil {
						return err
					}

					return printReports(cmd.OutOrStdout(), reports)
				}

				id, err := parseID(args[0])
				if err != nil {
					return err
				}

				r, err := a.Auditor.AuditUser(ctx, id, correct)
				if err != nil {
					return err
				}

				return printReports(cmd.OutOrStdout(), []audit.Report{r})
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "audit every user")
	cmd.Flags().BoolVar(&correct, "correct", false, "apply corrections for findings")

	return cmd
}

func printReports(out io.Writer, reports []audit.Report) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tFINDING\tCURRENCY\tNODE\tEXPECTED\tACTUAL\tCORRECTED")

	dirty := 0

	for _, r := range reports {
		if r.Clean() {
			continue
		}

		dirty++

		for _, f := range r.Findings {
			expected, actual := domain.FormatMinor(f.Expected), domain.FormatMinor(f.Actual)
			if f.Kind == audit.LevelDrift {
				expected, actual = strconv.FormatInt(f.Expected, 10), strconv.FormatInt(f.Actual, 10)
			}

			node := "-"
			if f.NodeID != 0 {
				node = strconv.FormatInt(f.NodeID, 10)
			}

			currency := string(f.Currency)
			if currency == "" {
				currency = "-"
			}

			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%t\n", r.UserID, f.Kind, currency, node, expected, actual, r.Corrected)
		}
	}

	err := tw.Flush()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "%d audited, %d with findings\n", len(reports), dirty)

	return err
}

func newTreeCmd(open opener) *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "tree <userID>",
		Short: "Print the user's nodes and their subtrees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				trees, err := a.Matrix.GetTree(ctx, id, depth)
				if err != nil {
					return err
				}

				if len(trees) == 0 {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), "no active nodes")

					return err
				}

				for _, t := range trees {
					printTree(cmd.OutOrStdout(), t, 0)
				}

				return nil
			})
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 2, "levels below each node to load")

	return cmd
}

func printTree(out io.Writer, t *matrix.TreeNode, indent int) {
	state := ""
	switch {
	case t.Closed:
		state = " closed"
	case !t.Active:
		state = " inactive"
	}

	fmt.Fprintf(out, "%s#%d user=%d %s L%d pool=%s%s\n",
		strings.Repeat("  ", indent), t.ID, t.OwnerID, t.Tier, t.Level, domain.FormatMinor(t.PoolMinor), state)

	for _, c := range t.Children {
		printTree(out, c, indent+1)
	}
}

func newDrainCmd(open opener) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Apply cascade contributions still waiting in the outbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				n, err := a.Progression.DrainPending(ctx, limit)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d contributions applied\n", n)

				return err
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 1000, "maximum rows to apply")

	return cmd
}

func newEvaluateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <nodeID>",
		Short: "Re-run the level check of one node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				done, err := a.Progression.EvaluateNode(ctx, int64(id))
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(done) == 0 {
					_, err = fmt.Fprintln(out, "no level change")

					return err
				}

				for _, lt := range done {
					fmt.Fprintf(out, "node %d: L%d -> L%d consumed=%s bonus=%s payout=%s\n",
						lt.NodeID, lt.FromLevel, lt.ToLevel,
						domain.FormatMinor(lt.PoolConsumed), domain.FormatMinor(lt.BonusPaid), domain.FormatMinor(lt.Payout))
				}

				return nil
			})
		},
	}
}

func newHistoryCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "history <nodeID>",
		Short: "Replay the level transitions of one node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				n, steps, err := a.Matrix.NodeHistory(ctx, int64(id))
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "node #%d user=%d %s L%d pool=%s\n",
					n.ID, n.OwnerID, n.Tier, n.Level, domain.FormatMinor(n.PoolMinor))

				if len(steps) == 0 {
					_, err = fmt.Fprintln(out, "no transitions")

					return err
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "AT\tSTEP\tCONSUMED\tBONUS\tTO\tPAYOUT")

				for _, lt := range steps {
					to := "-"
					if lt.BonusUserID != nil {
						to = strconv.FormatUint(*lt.BonusUserID, 10)
					}

					fmt.Fprintf(tw, "%s\tL%d->L%d\t%s\t%s\t%s\t%s\n",
						lt.CreatedAt.UTC().Format("2006-01-02 15:04:05"), lt.FromLevel, lt.ToLevel,
						domain.FormatMinor(lt.PoolConsumed), domain.FormatMinor(lt.BonusPaid), to,
						domain.FormatMinor(lt.Payout))
				}

				return tw.Flush()
			})
		},
	}
}
