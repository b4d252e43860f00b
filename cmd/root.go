/*
Copyright (c) Akim Faskhutdinov

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/akimrx/ch-metrics-cleaner/src/utils"
)

var (
	cfgFile          string
	prefixes         []string
	matchKey         string
	database         string
	tables           []string
	checkoutOnly     bool
	awaitMutationEnd bool
	forceDelete      bool
	logLevel         string
)

var rootCmd = &cobra.Command{
	Use:     "ch-cleaner",
	Short:   "ClickHouse data cleaner",
	Version: utils.CH_CLEANER_VERSION,
	Long: `A CLI tool that searches rows matching a path prefix in a ClickHouse table,
deletes them on confirmation and tracks the resulting asynchronous mutation
via the system.mutations table.`,

	Run: runCleaner,
}

// Execute runs the root command. Flag-level failures (unknown flag, missing
// required flag, mutually exclusive flags combined) are argument errors and
// exit with their own code; cobra has already printed the diagnostic.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(utils.ExitCodeArguments)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SilenceUsage = true

	rootCmd.Flags().StringSliceVarP(&prefixes, "prefix", "p", nil,
		"path prefixes for search matches (comma-separated)")
	rootCmd.Flags().StringVarP(&matchKey, "key", "k", "",
		"primary key (column) in the table for prefix matches (default from config)")
	rootCmd.Flags().StringVarP(&database, "database", "d", "",
		"database to connect (default from config)")
	rootCmd.Flags().StringSliceVarP(&tables, "table", "t", nil,
		"tables for search matches (comma-separated)")
	rootCmd.Flags().BoolVarP(&checkoutOnly, "checkout-only", "S", false,
		"print only mutation status for the table")
	rootCmd.Flags().BoolVarP(&awaitMutationEnd, "await-mutation-end", "W", false,
		"lock execution until the mutation completes")
	rootCmd.Flags().BoolVarP(&forceDelete, "force", "f", false,
		"delete all matches without asking for confirmation")
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "",
		"custom path to config file in yaml format (default ~/.config/ch-cleaner.yaml)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "",
		"log level: trace, debug, info, warn, error, fatal, panic (default \"info\")")

	rootCmd.MarkFlagRequired("table")
	rootCmd.MarkFlagsMutuallyExclusive("checkout-only", "force")
	rootCmd.MarkFlagsMutuallyExclusive("checkout-only", "await-mutation-end")
	rootCmd.MarkFlagsMutuallyExclusive("force", "await-mutation-end")
}
