// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Seed commands load SQL seed files into the database. Each file is executed
// as a single transaction, so a failing statement rolls back the whole file.

package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"
	"v.io/x/lib/cmdline"

	"github.com/supergnaw/nestbox"
	"github.com/supergnaw/nestbox/lib"
)

var cmdSeed = &cmdline.Command{
	Runner: runWithNestbox(runSeed),
	Name:   "seed",
	Short:  "Load SQL seed files into the database",
	Long: `
Executes every SQL file matching the seed glob against the database, in
lexical order. Each file runs inside its own transaction.
`,
	ArgsName: "[<glob>]",
	ArgsLong: `
<glob> is a doublestar pattern selecting the seed files to load. Defaults to
the -seeddir flag value joined with "**/*.sql".
`,
}

var flagSeedDir string

func init() {
	cmdSeed.Flags.StringVar(&flagSeedDir, "seeddir", "./seeds", "Path to directory containing SQL seed files.")
}

func runSeed(db *nestbox.DB, env *cmdline.Env, args []string) error {
	pattern := os.ExpandEnv(flagSeedDir) + "/**/*.sql"
	if len(args) > 1 {
		return env.UsageErrorf("at most one glob argument expected")
	}
	if len(args) == 1 {
		pattern = args[0]
	}

	files, err := doublestar.Glob(pattern)
	if err != nil {
		return fmt.Errorf("Bad seed glob %q: %v", pattern, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("No seed files match %q", pattern)
	}
	sort.Strings(files)

	for _, file := range files {
		if logVerbose() {
			fmt.Fprintf(env.Stdout, "Seeding: %s\n", file)
		}
		raw, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("Failed reading seed file %q: %v", file, err)
		}
		stmts := splitStatements(string(raw))
		if len(stmts) == 0 {
			continue
		}
		if *flagDryRun {
			fmt.Fprintf(env.Stdout, "Would execute %d statements from %q\n", len(stmts), file)
			continue
		}
		if _, err := db.TransactionExecute(stmts); err != nil {
			return fmt.Errorf("Seed file %q failed: %v", file, err)
		}
	}
	if !*flagDryRun {
		fmt.Fprintf(env.Stdout, "Successfully loaded %d seed files\n", len(files))
	}
	return nil
}

// splitStatements splits a seed file into statements on semicolon line ends.
// Line comments are dropped. Seed files are plain INSERT/UPDATE data, not
// arbitrary SQL; statement bodies must not contain a semicolon at end of line.
func splitStatements(src string) []nestbox.Statement {
	var stmts []nestbox.Statement
	var buf []string
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		buf = append(buf, line)
		if strings.HasSuffix(trimmed, ";") {
			query := strings.TrimSuffix(strings.TrimSpace(strings.Join(buf, "\n")), ";")
			stmts = append(stmts, nestbox.Statement{Query: query})
			buf = nil
		}
	}
	if len(buf) > 0 {
		stmts = append(stmts, nestbox.Statement{Query: strings.TrimSpace(strings.Join(buf, "\n"))})
	}
	return stmts
}

// runWithNestbox is a wrapper that handles opening and closing the nestbox
// handle used by data-loading commands.
func runWithNestbox(fx func(db *nestbox.DB, env *cmdline.Env, args []string) error) cmdline.Runner {
	return cmdline.RunnerFunc(func(env *cmdline.Env, args []string) (rerr error) {
		db, err := nestbox.New(dbConfig())
		if err != nil {
			return fmt.Errorf("Bad database configuration: %v", err)
		}
		if err := db.Connect(); err != nil {
			return fmt.Errorf("Error opening database connection: %v", err)
		}
		// Best effort close.
		defer func() {
			if cerr := db.Close(); cerr != nil {
				cerr = fmt.Errorf("Failed closing database connection: %v", cerr)
				rerr = lib.MergeErrors(rerr, cerr, "\n")
			}
		}()

		return fx(db, env, args)
	})
}
