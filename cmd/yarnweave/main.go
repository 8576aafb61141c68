/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"yarnweave/internal/config"
	"yarnweave/internal/crash"
	applog "yarnweave/internal/log"
	"yarnweave/internal/storage"
	"yarnweave/internal/version"
)

// errUsage marks a command line that could not be parsed. run maps it to exit code 2.
var errUsage = errors.New("usage")

// app carries the loaded configuration and the I/O of one CLI invocation.
type app struct {
	cfg      config.AppConfig
	password string
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	log      *slog.Logger
	// ph is the project opened by the running command, for crash autosaves.
	ph       *storage.ProjectHandle
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Yarnweave - dialogue graph <-> script converter")
	_, _ = fmt.Fprintf(w, "Version: %s\n", version.String())
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  yarnweave version                            Show version")
	_, _ = fmt.Fprintln(w, "  yarnweave init [-dir D] [name]               Create a new project")
	_, _ = fmt.Fprintln(w, "  yarnweave import [-dir D] [-strict] [-title T] <file|->")
	_, _ = fmt.Fprintln(w, "                                               Replace the project tree with a script")
	_, _ = fmt.Fprintln(w, "  yarnweave export [-dir D] [-o file|-]        Write the project tree as a script")
	_, _ = fmt.Fprintln(w, "  yarnweave check [-dir D] [file|-]            Report script diagnostics and tree problems")
	_, _ = fmt.Fprintln(w, "  yarnweave search [-dir D] [-speaker S] [-kind K,..] [-node ID] [-to ID] [terms]")
	_, _ = fmt.Fprintln(w, "                                               Search the project index")
	_, _ = fmt.Fprintln(w, "  yarnweave pdf [-dir D] [-o file] [-page-size A4|A5|Letter] [-hide-directives]")
	_, _ = fmt.Fprintln(w, "  yarnweave snapshots [-dir D] [-n N] [-latest] [-prune N]")
	_, _ = fmt.Fprintln(w, "  yarnweave publish [-dir D] [-author A]       Publish the tree to the shared library")
	_, _ = fmt.Fprintln(w, "  yarnweave saveas [-dir D] <new-dir>          Copy the project to a new directory")
	_, _ = fmt.Fprintln(w, "  yarnweave fetch [-dir D] [-version N | -history] [tree-id]")
	_, _ = fmt.Fprintln(w, "                                               Fetch a tree, or list the library without an id")
	_, _ = fmt.Fprintln(w, "  yarnweave login                              Store the library password (read from stdin)")
	_, _ = fmt.Fprintln(w, "  yarnweave config [init]                      Show the effective config or write the defaults")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	// A .env file in the working directory may provide YW_* overrides.
	_ = godotenv.Load()
	cfg, pw, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
		Console:   stderr,
	})
	a := &app{cfg: cfg, password: pw, stdin: stdin, stdout: stdout, stderr: stderr, log: applog.WithComponent("cli")}
	if cfgErr != nil {
		a.log.Warn("config load problem, using defaults where needed", slog.Any("err", cfgErr))
	}
	crashDir := ""
	if d, err := config.Dir(); err == nil {
		crashDir = filepath.Join(d, "crash")
	}
	crash.Configure(crash.Options{Reports: cfg.General.CrashReports, Dir: crashDir})
	defer crash.RecoverWith(func() *storage.ProjectHandle { return a.ph })

	if len(args) == 0 {
		usage(stdout)
		return 0
	}
	a.log.Debug("start", slog.String("cmd", args[0]), slog.Int("args", len(args)-1))

	ctx := context.Background()
	var err error
	switch args[0] {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(stdout, version.String())
		return 0
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	case "init":
		err = a.cmdInit(args[1:])
	case "import":
		err = a.cmdImport(ctx, args[1:])
	case "export":
		err = a.cmdExport(ctx, args[1:])
	case "check":
		err = a.cmdCheck(args[1:])
	case "search":
		err = a.cmdSearch(ctx, args[1:])
	case "pdf":
		err = a.cmdPDF(args[1:])
	case "snapshots":
		err = a.cmdSnapshots(ctx, args[1:])
	case "saveas":
		err = a.cmdSaveAs(ctx, args[1:])
	case "publish":
		err = a.cmdPublish(ctx, args[1:])
	case "fetch":
		err = a.cmdFetch(ctx, args[1:])
	case "login":
		err = a.cmdLogin()
	case "config":
		err = a.cmdConfig(args[1:])
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		return 2
	default:
		a.log.Debug("command failed", slog.String("cmd", args[0]), slog.Any("err", err))
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
}

// flags returns a flag set writing its usage to stderr, with the shared -dir flag.
func (a *app) flags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	dir := fs.String("dir", a.cfg.General.ProjectDir, "project directory")
	return fs, dir
}

func (a *app) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

// open loads the project at dir and remembers it for crash autosaves.
func (a *app) open(dir string) (*storage.ProjectHandle, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	ph, err := storage.Open(abs)
	if err != nil {
		return nil, err
	}
	if ph.Recovered {
		_, _ = fmt.Fprintln(a.stderr, "Warning: dialogue.json was unusable; loaded the latest backup.")
	}
	a.ph = ph
	return ph, nil
}

// readInput reads a file, or stdin for "-".
func (a *app) readInput(name string) (string, error) {
	if name == "-" {
		b, err := io.ReadAll(a.stdin)
		return string(b), err
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.stdout, format, args...)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
