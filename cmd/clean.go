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
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/akimrx/ch-metrics-cleaner/src/chdb"
	"github.com/akimrx/ch-metrics-cleaner/src/cleaner"
	"github.com/akimrx/ch-metrics-cleaner/src/config"
	"github.com/akimrx/ch-metrics-cleaner/src/utils"
)

func runCleaner(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	initLoggingFromConfig(cfg)

	key := matchKey
	if key == "" {
		key = cfg.ClickHouse.MatchKey
	}
	db := database
	if db == "" {
		db = cfg.ClickHouse.Database
	}
	validateArgs(key, db)

	client := chdb.NewClient(chdb.Config{
		BaseURL:  cfg.ClickHouse.BaseURL(),
		User:     cfg.ClickHouse.User,
		Password: cfg.ClickHouse.Password,
	})
	workflow := cleaner.New(client, cleaner.NewStdinConfirmer(os.Stdin), cleaner.Options{
		Force:            forceDelete,
		AwaitMutationEnd: awaitMutationEnd,
	})
	ctx := cmd.Context()

	if checkoutOnly {
		for _, table := range tables {
			if err := workflow.CheckMutations(ctx, db, table, false, false); err != nil {
				utils.ErrExit("%s", err)
			}
		}
		return
	}

	for _, prefix := range prefixes {
		for _, table := range tables {
			request := cleaner.QueryRequest{Prefix: prefix, Key: key, Database: db, Table: table}
			log.Infof("processing prefix=%q table=%s.%s", prefix, db, table)
			if err := workflow.Run(ctx, request); err != nil {
				// Only a failure while polling mutation status lands here;
				// search and delete failures let the batch continue.
				utils.ErrExit("%s", err)
			}
		}
	}

	if forceDelete {
		utils.PrintAndLog("---")
		utils.PrintAndLog("For check the mutation status use the argument '--checkout-only' or '-S'")
	}
}

func validateArgs(key, db string) {
	if len(prefixes) == 0 && !checkoutOnly {
		utils.ErrExitCode(utils.ExitCodeArguments,
			"Prefix required, but not received. Use --prefix arg or --help")
	}
	if !checkoutOnly && key == "" {
		utils.ErrExitCode(utils.ExitCodeArguments,
			"Match key required, but not received. Use --key arg or set clickhouse.match_key in the config")
	}
	if db == "" {
		utils.ErrExitCode(utils.ExitCodeArguments,
			"Database required, but not received. Use --database arg or set clickhouse.database in the config")
	}
}

func loadConfig() *config.Config {
	path := cfgFile
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			utils.ErrExitCode(utils.ExitCodeConfig, "%s", err)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Errorf("load config: %s", err)
		utils.ErrExitCode(utils.ExitCodeConfig,
			"Corrupted config or config file not found. Please, place your config to the path: ~/.config/%s or use --config <file>",
			config.DefaultFileName)
	}
	return cfg
}

func initLoggingFromConfig(cfg *config.Config) {
	level := logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	if err := config.ValidateLogLevel(level); err != nil {
		utils.ErrExitCode(utils.ExitCodeArguments, "%s", err)
	}
	InitLogging(level)
}
