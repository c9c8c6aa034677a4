package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikey/llm-mail-sorter/internal/config"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/mikey/llm-mail-sorter/internal/factory"
)

func newClassifyCmd() *cobra.Command {
	var (
		top   int
		learn bool
		apply bool
	)
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Run a classification pass and save the sender rule-set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return invoke(func(cfg *config.Config, svc *core.ClassificationService, applier *core.RuleApplier) error {
				opts := core.PassOptions{TopN: cfg.GetClassifier().TopSenders, Learn: cfg.GetClassifier().Learn}
				if cmd.Flags().Changed("top") {
					opts.TopN = top
				}
				if cmd.Flags().Changed("learn") {
					opts.Learn = learn
				}

				report, err := svc.RunPass(cmd.Context(), opts)
				if err != nil {
					return err
				}
				printPassReport(os.Stdout, report)

				if !apply {
					return nil
				}
				applied, err := applier.Apply(cmd.Context())
				if err != nil {
					return err
				}
				printApplyReport(os.Stdout, applied)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&top, "top", 0, "Classify only the N most frequent senders (0 for all)")
	cmd.Flags().BoolVar(&learn, "learn", false, "Synthesize learned rules from manual corrections first")
	cmd.Flags().BoolVar(&apply, "apply", false, "Apply the rule-set to stored records afterwards")
	return cmd
}

func newApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Apply the saved rule-set to stored records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return invoke(func(applier *core.RuleApplier) error {
				report, err := applier.Apply(cmd.Context())
				if err != nil {
					return err
				}
				printApplyReport(os.Stdout, report)
				return nil
			})
		},
	}
}

func newLearnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "learn",
		Short: "Synthesize learned rules from recent manual corrections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return invoke(func(synth *core.Synthesizer) error {
				report, err := synth.Learn(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("Examples: %d positive, %d negative\n", report.Positives, report.Negatives)
				fmt.Printf("Patterns: %d proposed, %d created, %d rejected\n",
					report.Proposed, report.Created, len(report.Rejected))
				for _, p := range report.Rejected {
					fmt.Printf("  rejected %q\n", p)
				}
				return nil
			})
		},
	}
}

func newGCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Delete stale and low-confidence learned rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return invoke(func(rules core.LearnedRuleStore, f *factory.ClassifierFactory, clock core.Clock) error {
				deleted, err := rules.GarbageCollect(cmd.Context(), clock.Now(), f.LifecyclePolicy())
				if err != nil {
					return err
				}
				fmt.Printf("Deleted %d learned rules\n", len(deleted))
				printLearnedRules(os.Stdout, deleted)
				return nil
			})
		},
	}
}

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and correct the sender rule-set",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List rule-set entries",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return invoke(func(c *core.Corrections) error {
					rs, err := c.List(cmd.Context())
					if err != nil {
						return err
					}
					printRuleSet(os.Stdout, rs)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "set <sender> <category>",
			Short: "Assign a sender to a category manually",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return invoke(func(c *core.Corrections) error {
					entry, err := c.SetManual(cmd.Context(), args[0], args[1])
					if err != nil {
						return err
					}
					fmt.Printf("%s -> %s (%s)\n", args[0], entry.Category, entry.Source)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete <sender>",
			Short: "Remove a sender from the rule-set",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return invoke(func(c *core.Corrections) error {
					deleted, err := c.Delete(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if !deleted {
						return fmt.Errorf("no rule for %s", args[0])
					}
					fmt.Printf("Deleted rule for %s\n", args[0])
					return nil
				})
			},
		},
	)
	return cmd
}

func newLearnedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learned",
		Short: "Inspect learned rules",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List learned rules, most used first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return invoke(func(rules core.LearnedRuleStore) error {
				list, err := rules.List(cmd.Context())
				if err != nil {
					return err
				}
				printLearnedRules(os.Stdout, list)
				return nil
			})
		},
	})
	return cmd
}

func printPassReport(w io.Writer, r *core.PassReport) {
	fmt.Fprintf(w, "Pass %s: %d senders, %d unresolved\n", r.PassID, r.Senders, r.Unresolved)
	if len(r.Collected) > 0 {
		fmt.Fprintf(w, "  collected %d learned rules\n", len(r.Collected))
	}
	if r.Synthesis != nil {
		fmt.Fprintf(w, "  learned %d new rules\n", r.Synthesis.Created)
	}
	sources := make([]string, 0, len(r.BySource))
	for s := range r.BySource {
		sources = append(sources, string(s))
	}
	sort.Strings(sources)
	for _, s := range sources {
		fmt.Fprintf(w, "  %-16s %d\n", s, r.BySource[core.Source(s)])
	}
}

func printApplyReport(w io.Writer, r *core.ApplyReport) {
	fmt.Fprintf(w, "Updated %d records\n", r.Total)
	categories := make([]string, 0, len(r.Changed))
	for c := range r.Changed {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(w, "  %-16s %d\n", c, r.Changed[c])
	}
	for _, p := range r.Penalized {
		fmt.Fprintf(w, "  penalized learned rule %q\n", p)
	}
}

func printRuleSet(w io.Writer, rs core.RuleSet) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SENDER\tCATEGORY\tSOURCE\tCOUNT\tLAST")
	for _, sender := range rs.Senders() {
		e := rs[sender]
		last := ""
		if !e.LastDate.IsZero() {
			last = e.LastDate.Format(time.DateOnly)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", sender, e.Category, e.Source, e.Count, last)
	}
	tw.Flush()
}

func printLearnedRules(w io.Writer, rules []core.LearnedRule) {
	if len(rules) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATTERN\tCATEGORY\tCONFIDENCE\tHITS\tLAST USED")
	for _, r := range rules {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\t%s\n",
			r.Pattern, r.Category, r.Confidence, r.HitCount, r.LastUsed().Format(time.DateOnly))
	}
	tw.Flush()
}
