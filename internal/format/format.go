// Package format renders search results for the CLI.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bibdex/bibdex/internal/bib"
	bterrors "github.com/bibdex/bibdex/internal/errors"
	"github.com/bibdex/bibdex/internal/search"
)

// Format selects the output presentation.
type Format string

const (
	// FormatTable renders an aligned text table. Default.
	FormatTable Format = "table"
	// FormatBibTeX renders full BibTeX records.
	FormatBibTeX Format = "bibtex"
	// FormatJSON renders the raw result objects.
	FormatJSON Format = "json"
	// FormatKeys renders one citation key per line.
	FormatKeys Format = "keys"
)

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case FormatTable, FormatBibTeX, FormatJSON, FormatKeys:
		return Format(name), nil
	case "":
		return FormatTable, nil
	default:
		return "", bterrors.New(bterrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown output format %q", name), nil).
			WithSuggestion("use one of: table, bibtex, json, keys")
	}
}

// Results writes search results in the chosen format.
func Results(w io.Writer, results []search.Result, f Format) error {
	switch f {
	case FormatBibTeX:
		return writeBibTeX(w, results)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case FormatKeys:
		for _, r := range results {
			if _, err := fmt.Fprintln(w, r.Key); err != nil {
				return err
			}
		}
		return nil
	default:
		return writeTable(w, results)
	}
}

func writeTable(w io.Writer, results []search.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tTYPE\tYEAR\tAUTHOR\tTITLE\tSCORE")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\n",
			r.Key, r.EntryType,
			r.Fields["year"], truncate(r.Fields["author"], 30),
			truncate(r.Fields["title"], 50), r.Score)
	}
	return tw.Flush()
}

func writeBibTeX(w io.Writer, results []search.Result) error {
	for i, r := range results {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		e := &bib.Entry{Key: r.Key, Type: r.EntryType, Fields: r.Fields}
		if _, err := fmt.Fprintln(w, e.String()); err != nil {
			return err
		}
	}
	return nil
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
