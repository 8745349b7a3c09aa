package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var reportBatch string

var reportCmd = &cobra.Command{
	Use:   "report [name]",
	Short: "List or print pipeline reports",
	Long:  "Without arguments, lists the markdown reports in the reports directory. With a report file name, prints it. --batch narrows the listing to one batch.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Storage.ReportsDir

		if len(args) == 1 {
			content, err := os.ReadFile(filepath.Join(dir, args[0]))
			if err != nil {
				return eris.Wrapf(err, "read report %s", args[0])
			}
			fmt.Print(string(content))
			return nil
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Fprintln(os.Stderr, "No reports yet.")
				return nil
			}
			return eris.Wrapf(err, "read reports dir %s", dir)
		}

		var names []string
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
				continue
			}
			if reportBatch != "" && !strings.Contains(e.Name(), reportBatch) {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)

		if len(names) == 0 {
			fmt.Fprintln(os.Stderr, "No reports found.")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportBatch, "batch", "", "only show reports for this batch id")
	rootCmd.AddCommand(reportCmd)
}
