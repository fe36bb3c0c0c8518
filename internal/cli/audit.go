package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChrisB0-2/euicc-gate/internal/auditor"
)

func (a *app) auditCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the SQLite audit log",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "audit database (default execution.audit_db)")

	open := func() (*auditor.SQLiteAuditor, error) {
		path := dbPath
		if path == "" {
			path = a.cfg.Execution.AuditDB
		}
		if path == "" {
			return nil, configError{errors.New("no audit database: set execution.audit_db or pass --db")}
		}
		db, err := auditor.NewSQLite(auditor.SQLiteConfig{Path: path})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		return db, nil
	}

	cmd.AddCommand(auditQueryCmd(open))
	cmd.AddCommand(auditVerifyCmd(open))
	cmd.AddCommand(auditStatsCmd(open))
	cmd.AddCommand(auditPruneCmd(open))
	cmd.AddCommand(auditExportCmd(open))

	return cmd
}

type openDB func() (*auditor.SQLiteAuditor, error)

func auditQueryCmd(open openDB) *cobra.Command {
	var (
		since   time.Duration
		filter  auditor.QueryFilter
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List audit records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			records, err := db.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if records == nil {
					records = []auditor.AuditRecord{}
				}
				return enc.Encode(records)
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tLEVEL\tACTION\tPACKAGE\tSTATE\tREASON\tERROR")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Timestamp.Local().Format(time.DateTime),
					r.Level, r.Action, dash(r.Package), dash(r.State), dash(r.Reason), r.Error)
			}
			return tw.Flush()
		},
	}

	f := cmd.Flags()
	f.DurationVar(&since, "since", 0, "only records newer than this (e.g. 24h)")
	f.StringVar(&filter.Action, "action", "", "filter by action (decide, apply)")
	f.StringVar(&filter.Level, "level", "", "filter by level (info, error)")
	f.StringVar(&filter.Package, "package", "", "filter by package (substring)")
	f.StringVar(&filter.RunID, "run", "", "filter by run ID")
	f.IntVar(&filter.Limit, "limit", 50, "maximum records, 0 for no limit")
	f.BoolVar(&jsonOut, "json", false, "print records as JSON")

	return cmd
}

func auditVerifyCmd(open openDB) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check record checksums for tampering",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			tampered, err := db.VerifyIntegrity(cmd.Context())
			if err != nil {
				return err
			}
			if len(tampered) > 0 {
				return fmt.Errorf("%d tampered records: %v", len(tampered), tampered)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "audit log integrity ok")
			return nil
		},
	}
}

func auditStatsCmd(open openDB) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			s, err := db.Stats(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "records:           %d\n", s.TotalRecords)
			if s.TotalRecords > 0 {
				fmt.Fprintf(w, "first:             %s\n", s.FirstRecord.Local().Format(time.DateTime))
				fmt.Fprintf(w, "last:              %s\n", s.LastRecord.Local().Format(time.DateTime))
			}
			fmt.Fprintf(w, "runs:              %d\n", s.Runs)
			fmt.Fprintf(w, "disable decisions: %d\n", s.DisableDecisions)
			fmt.Fprintf(w, "enable decisions:  %d\n", s.EnableDecisions)
			fmt.Fprintf(w, "applied writes:    %d\n", s.Applies)
			fmt.Fprintf(w, "errors:            %d\n", s.Errors)
			return nil
		},
	}
}

func auditPruneCmd(open openDB) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete records older than a retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return configError{errors.New("--older-than must be > 0")}
			}
			db, err := open()
			if err != nil {
				return err
			}
			n, err := db.Prune(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d records\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "retention period (e.g. 720h)")

	return cmd
}

func auditExportCmd(open openDB) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write records as JSON to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := open()
			if err != nil {
				return err
			}
			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}
			data, err := db.Export(cmd.Context(), from)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if _, err := w.Write(data); err != nil {
				return err
			}
			_, err = fmt.Fprintln(w)
			return err
		},
	}

	cmd.Flags().DurationVar(&since, "since", 0, "only records newer than this")

	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
