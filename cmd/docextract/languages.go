package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/73ai/docextract/internal/parser"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported languages and their comment syntax",
	Long: `List every registered language, including those loaded with --grammars,
with its extensions, comment markers, doc comment variants and the
declaration kinds it detects.`,
	RunE: runLanguages,
}

func init() {
	rootCmd.AddCommand(languagesCmd)
	languagesCmd.Flags().StringP("format", "f", "text", "Output format (text, json, yaml)")
}

func runLanguages(cmd *cobra.Command, args []string) error {
	registry, err := newRegistry(config)
	if err != nil {
		return err
	}
	features := registry.GetLanguageFeatures()

	switch config.Format {
	case "json":
		return writeJSON(os.Stdout, features)
	case "yaml", "yml":
		return writeYAML(os.Stdout, features)
	case "text", "txt":
		return printLanguages(os.Stdout, features)
	default:
		return fmt.Errorf("unsupported languages format %q (want text, json or yaml)", config.Format)
	}
}

func printLanguages(w io.Writer, features []parser.LanguageFeatures) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LANGUAGE\tEXTENSIONS\tCOMMENTS\tDOC VARIANTS\tKINDS")
	for _, f := range features {
		comments := append(append([]string(nil), f.LineComments...), f.BlockComments...)
		doc := strings.Join(f.DocVariants, ", ")
		if f.DocstringFollows {
			doc = strings.TrimPrefix(doc+", docstring", ", ")
		}
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			f.Language,
			strings.Join(f.Extensions, " "),
			strings.Join(comments, ", "),
			orDash(doc),
			strings.Join(kinds, ", "))
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
