package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hrygo/ordernotes/server/service/ordernote"
	"github.com/hrygo/ordernotes/store"
)

var classifyShowAll bool

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Read one note per line from stdin and print the human-written ones",
	Long: `Reads notes from stdin, one per line, and prints those that are not
system generated. With --all every note is printed with a "system" or
"human" prefix.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rules, err := cmd.Flags().GetStringArray("rule")
		if err != nil {
			return err
		}
		classifier, err := ordernote.NewClassifier(ordernote.WithRules(rules...))
		if err != nil {
			return err
		}
		return classify(cmd.InOrStdin(), cmd.OutOrStdout(), classifier, classifyShowAll)
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyShowAll, "all", false, "print every note with its classification")
	classifyCmd.Flags().StringArray("rule", nil, "extra CEL rule marking notes as system generated, repeatable")
}

func classify(r io.Reader, w io.Writer, classifier *ordernote.Classifier, showAll bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		system := classifier.IsSystemNote(&store.OrderNote{Content: line})
		switch {
		case showAll && system:
			fmt.Fprintf(w, "system\t%s\n", line)
		case showAll:
			fmt.Fprintf(w, "human\t%s\n", line)
		case !system:
			fmt.Fprintln(w, line)
		}
	}
	return scanner.Err()
}
