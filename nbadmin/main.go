// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Admin tool for managing nestbox databases.

package main

import (
	"database/sql"
	"flag"
	"fmt"

	"v.io/x/lib/cmdline"

	"github.com/supergnaw/nestbox"
)

func main() {
	cmdline.Main(cmdNBAdmin)
}

var cmdNBAdmin = &cmdline.Command{
	Name:  "nbadmin",
	Short: "Nestbox database management tool",
	Long: `
Tool for managing nestbox databases.
Supports database schema migration and loading seed data into the database.
`,
	Children: []*cmdline.Command{cmdMigrate, cmdSeed},
}

var (
	flagDryRun  = flag.Bool("n", false, "Show necessary database modifications, but do not apply them.")
	flagVerbose = flag.Bool("v", true, "Show more verbose output.")

	flagHost     = flag.String("host", "localhost:3306", "Database server address.")
	flagUser     = flag.String("user", "", "Database user.")
	flagPassword = flag.String("password", "", "Database password.")
	flagName     = flag.String("name", "", "Database name.")
)

func logVerbose() bool {
	return *flagDryRun || *flagVerbose
}

func dbConfig() nestbox.Config {
	return nestbox.Config{
		Host:     *flagHost,
		User:     *flagUser,
		Password: *flagPassword,
		Name:     *flagName,
	}
}

// Command to be wrapped with runWithDBConn().
type dbCommand func(db *sql.DB, env *cmdline.Env, args []string) error

// runWithDBConn is a wrapper that handles opening and closing the plain
// database/sql connection used by schema migrations.
func runWithDBConn(fx dbCommand) cmdline.Runner {
	return cmdline.RunnerFunc(func(env *cmdline.Env, args []string) (rerr error) {
		conf := dbConfig()
		db, err := sql.Open(nestbox.DefaultDriver, conf.DSN())
		if err != nil {
			return fmt.Errorf("Error opening database connection: %v", err)
		}
		// Best effort close.
		defer func() {
			if cerr := db.Close(); cerr != nil {
				cerr = fmt.Errorf("Failed closing database connection: %v", cerr)
				if rerr == nil {
					rerr = cerr
				} else {
					rerr = fmt.Errorf("%v\n%v", rerr, cerr)
				}
			}
		}()
		// Ping database to check connection.
		if err := db.Ping(); err != nil {
			return fmt.Errorf("Error connecting to database: %v", err)
		}

		return fx(db, env, args)
	})
}
