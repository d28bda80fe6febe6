package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/rosterload/internal/core"
)

// maxListedErrors caps the invalid rows printed per entity.
const maxListedErrors = 10

// writeReport prints a run's outcome for a terminal.
func writeReport(w io.Writer, u core.ProgressUpdate) {
	fmt.Fprintf(w, "import %s: %s\n", u.ImportID, u.Status)
	if u.Message != "" {
		fmt.Fprintln(w, u.Message)
	}

	r := u.Metadata
	if r == nil {
		return
	}

	if len(r.Sheets) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SHEET\tENTITY\tROWS")
		for _, s := range r.Sheets {
			entity := string(s.Entity)
			if entity == "" {
				entity = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\n", s.Name, entity, s.Rows)
		}
		_ = tw.Flush()
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tROWS\tTRANSFORMED\tDROPPED\tINVALID\tDUPLICATES\tLOADED")
	for _, entity := range core.LoadOrder {
		e := r.Entity(entity)
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			entity, e.Rows, e.Transformed, e.Dropped, e.Invalid, e.Duplicates, e.Loaded)
	}
	_ = tw.Flush()

	for _, entity := range core.LoadOrder {
		errs := r.Entity(entity).Errors
		for i, e := range errs {
			if i == maxListedErrors {
				fmt.Fprintf(w, "  ... %d more invalid %s rows\n", len(errs)-i, entity)
				break
			}
			fmt.Fprintf(w, "  invalid %s: %s row %d: %s\n", entity, e.Sheet, e.Row, e.Reason)
		}
	}

	for _, miss := range r.Unclassified {
		fmt.Fprintf(w, "unclassified sheet %q (headers: %s)\n", miss.Sheet, strings.Join(miss.Headers, ", "))
	}

	if v := r.Verification; v != nil {
		for _, t := range v.Tables {
			if !t.Matches() {
				fmt.Fprintf(w, "verification: %s has %d rows, expected %d\n", t.Table, t.Count, t.Expected)
			}
		}
		for _, e := range v.Errors {
			fmt.Fprintf(w, "verification failed for %s: %s\n", e.Table, e.Err)
		}
	}
}
