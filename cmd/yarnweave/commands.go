/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"yarnweave/internal/config"
	"yarnweave/internal/domain"
	"yarnweave/internal/export"
	"yarnweave/internal/library"
	"yarnweave/internal/storage"
	"yarnweave/internal/yarn"
)

func (a *app) cmdInit(args []string) error {
	fs, dir := a.flags("init")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	root, err := filepath.Abs(*dir)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if name == "" {
		name = filepath.Base(root)
	}
	if _, err := os.Stat(filepath.Join(root, storage.ManifestFileName)); err == nil {
		return fmt.Errorf("project already exists at %s", root)
	}
	proj := domain.Project{Name: name, Tree: domain.DialogueTree{ID: uuid.NewString(), Title: name}}
	ph, err := storage.InitProject(root, proj)
	if err != nil {
		return err
	}
	a.ph = ph
	a.log.Info("project initialized", slog.String("root", root))
	a.printf("Initialized project %q at %s\n", name, root)
	return nil
}

func (a *app) cmdImport(ctx context.Context, args []string) error {
	fs, dir := a.flags("import")
	strict := fs.Bool("strict", a.cfg.Import.Strict, "reject scripts with diagnostics")
	title := fs.String("title", "", "tree title (default keeps the current one)")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		_, _ = fmt.Fprintln(a.stderr, "import requires exactly one script file or -")
		return errUsage
	}
	text, err := a.readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	ph, err := a.open(*dir)
	if err != nil {
		return err
	}
	res, err := storage.ImportScript(ctx, ph, text, storage.ImportOptions{
		Title:         *title,
		Strict:        *strict,
		KeepSnapshots: a.cfg.Import.SnapshotKeep,
	})
	a.printDiagnostics(res.Diagnostics)
	if err != nil {
		return err
	}
	a.printf("Imported %d node(s), start %q, %d diagnostic(s)\n", res.Tree.Nodes.Len(), res.Tree.StartNodeID, len(res.Diagnostics))
	return nil
}

func (a *app) cmdExport(ctx context.Context, args []string) error {
	fs, dir := a.flags("export")
	out := fs.String("o", "-", "output file, - for stdout")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	ph, err := a.open(*dir)
	if err != nil {
		return err
	}
	text, err := storage.ExportScript(ctx, ph, a.cfg.Import.SnapshotKeep)
	if err != nil {
		return err
	}
	if *out == "-" || *out == "" {
		_, err = fmt.Fprint(a.stdout, text)
		return err
	}
	if err := os.WriteFile(*out, []byte(text), 0o644); err != nil {
		return err
	}
	a.printf("Exported %d node(s) to %s\n", ph.Project.Tree.Nodes.Len(), *out)
	return nil
}

// cmdCheck parses a script (or the project's tree when no file is given) without
// writing anything and reports every diagnostic and structural problem.
func (a *app) cmdCheck(args []string) error {
	fs, dir := a.flags("check")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	var tree domain.DialogueTree
	var diags []yarn.Diagnostic
	switch fs.NArg() {
	case 0:
		ph, err := a.open(*dir)
		if err != nil {
			return err
		}
		tree = ph.Project.Tree
		if tree.Nodes.Len() > 0 {
			diags = yarn.Import(yarn.Export(tree), tree.Title).Diagnostics
		}
	case 1:
		text, err := a.readInput(fs.Arg(0))
		if err != nil {
			return err
		}
		res := yarn.Import(text, "")
		tree, diags = res.Tree, res.Diagnostics
	default:
		_, _ = fmt.Fprintln(a.stderr, "check takes at most one script file")
		return errUsage
	}
	a.printDiagnostics(diags)
	problems := len(diags)
	if err := tree.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			_, _ = fmt.Fprintln(a.stderr, "invalid:", line)
			problems++
		}
	}
	for _, l := range tree.DanglingLinks() {
		_, _ = fmt.Fprintln(a.stderr, "dangling link:", l)
		problems++
	}
	if problems > 0 {
		return fmt.Errorf("%d problem(s) found", problems)
	}
	a.printf("OK: %d node(s)\n", tree.Nodes.Len())
	return nil
}

func (a *app) cmdSearch(ctx context.Context, args []string) error {
	fs, dir := a.flags("search")
	speaker := fs.String("speaker", "", "only lines of this speaker")
	kinds := fs.String("kind", "", "comma separated line kinds (node, choice, block, ...)")
	node := fs.String("node", "", "only lines of this node")
	limit := fs.Int("limit", 20, "maximum results")
	offset := fs.Int("offset", 0, "results to skip")
	to := fs.String("to", "", "list the links pointing at this node instead")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	root, err := filepath.Abs(*dir)
	if err != nil {
		return err
	}
	if *to != "" {
		links, err := storage.WhereUsed(ctx, root, *to)
		if err != nil {
			return err
		}
		for _, l := range links {
			a.printf("%s\t%s\n", l.From, l.Via)
		}
		return nil
	}
	res, err := storage.Search(ctx, root, storage.SearchQuery{
		Text:    strings.Join(fs.Args(), " "),
		Speaker: *speaker,
		Kinds:   splitList(*kinds),
		NodeID:  *node,
		Limit:   *limit,
		Offset:  *offset,
	})
	if err != nil {
		return err
	}
	for _, r := range res {
		who := r.Speaker
		if who == "" {
			who = "-"
		}
		a.printf("%s\t%s\t%s\t%s\n", r.Path, r.Kind, who, r.Snippet)
	}
	return nil
}

func (a *app) cmdPDF(args []string) error {
	fs, dir := a.flags("pdf")
	out := fs.String("o", "script.pdf", "output file; relative paths go under exports/")
	pageSize := fs.String("page-size", a.cfg.Export.PageSize, "A4, A5 or Letter")
	fontSize := fs.Float64("font-size", a.cfg.Export.FontSize, "body font size in points")
	hide := fs.Bool("hide-directives", false, "omit set and jump lines")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	ph, err := a.open(*dir)
	if err != nil {
		return err
	}
	path, err := export.ExportScriptPDF(ph, *out, export.PDFOptions{PageSize: *pageSize, FontSize: *fontSize, HideDirectives: *hide})
	if err != nil {
		return err
	}
	a.printf("Wrote %s\n", path)
	return nil
}

func (a *app) cmdSnapshots(ctx context.Context, args []string) error {
	fs, dir := a.flags("snapshots")
	n := fs.Int("n", 10, "number of snapshots to list")
	latest := fs.Bool("latest", false, "print the text of the latest snapshot")
	prune := fs.Int("prune", 0, "keep only the N most recent snapshots")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	ph, err := a.open(*dir)
	if err != nil {
		return err
	}
	if *prune > 0 {
		removed, err := storage.PruneOldScriptSnapshots(ctx, ph, *prune)
		if err != nil {
			return err
		}
		a.printf("Removed %d snapshot(s)\n", removed)
		return nil
	}
	if *latest {
		snap, ok, err := storage.GetLatestScriptSnapshot(ctx, ph)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("no snapshots recorded")
		}
		_, err = fmt.Fprint(a.stdout, snap.Text)
		return err
	}
	snaps, err := storage.ListScriptSnapshots(ctx, ph, *n)
	if err != nil {
		return err
	}
	for _, s := range snaps {
		a.printf("%d\t%s\t%s\t%d bytes\n", s.ID, s.TS.Format("2006-01-02 15:04:05"), s.Origin, len(s.Text))
	}
	return nil
}

// openLibrary connects to the shared library configured in the user config.
func (a *app) openLibrary(ctx context.Context) (*library.Library, error) {
	lib, err := library.Open(ctx, a.cfg.Library.DSN, a.password)
	if errors.Is(err, library.ErrNoDSN) {
		return nil, fmt.Errorf("%w: set library.dsn in the config or %s", err, config.EnvLibraryDSN)
	}
	return lib, err
}

func (a *app) cmdPublish(ctx context.Context, args []string) error {
	fs, dir := a.flags("publish")
	author := fs.String("author", os.Getenv("USER"), "author recorded with the version")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	ph, err := a.open(*dir)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Library.Timeout())
	defer cancel()
	lib, err := a.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = lib.Close() }()
	e, err := lib.Publish(ctx, ph.Project, *author)
	if err != nil {
		return err
	}
	if ph.Project.Tree.ID != e.StableID {
		ph.Project.Tree.ID = e.StableID
		if err := storage.Save(ph); err != nil {
			return fmt.Errorf("published %s but saving the tree id failed: %w", e.StableID, err)
		}
	}
	a.printf("Published %s version %d\n", e.StableID, e.Version)
	return nil
}

func (a *app) cmdFetch(ctx context.Context, args []string) error {
	fs, dir := a.flags("fetch")
	ver := fs.Int64("version", 0, "version to fetch (default latest)")
	history := fs.Bool("history", false, "list the published versions of tree-id instead of fetching")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Library.Timeout())
	defer cancel()
	lib, err := a.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = lib.Close() }()

	if fs.NArg() == 0 {
		entries, err := lib.List(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			a.printf("%s\tv%d\t%s\t%s\n", e.StableID, e.Version, e.Name, e.PublishedAt.Format("2006-01-02 15:04"))
		}
		return nil
	}

	if *history {
		entries, err := lib.History(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		for _, e := range entries {
			a.printf("v%d\t%s\t%s\t%s\n", e.Version, e.PublishedAt.Format("2006-01-02 15:04"), e.Author, e.Title)
		}
		return nil
	}

	var pub library.Published
	if *ver > 0 {
		pub, err = lib.Version(ctx, fs.Arg(0), *ver)
	} else {
		pub, err = lib.Latest(ctx, fs.Arg(0))
	}
	if err != nil {
		return err
	}
	ph, err := a.open(*dir)
	if err != nil {
		return err
	}
	ph.Project = pub.Project
	if err := storage.Save(ph); err != nil {
		return err
	}
	if err := storage.WriteScript(ph, pub.Script); err != nil {
		return err
	}
	if err := storage.UpdateIndex(ctx, ph.Root, ph.Project); err != nil {
		a.log.Warn("index update failed after fetch", slog.Any("err", err))
	}
	a.printf("Fetched %s version %d into %s\n", pub.StableID, pub.Version, ph.Root)
	return nil
}

// cmdSaveAs writes the open project to a new directory, together with its script,
// and indexes the copy. The original project is left untouched.
func (a *app) cmdSaveAs(ctx context.Context, args []string) error {
	fs, dir := a.flags("saveas")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		_, _ = fmt.Fprintln(a.stderr, "saveas requires the new project directory")
		return errUsage
	}
	target, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(target, storage.ManifestFileName)); err == nil {
		return fmt.Errorf("project already exists at %s", target)
	}
	ph, err := a.open(*dir)
	if err != nil {
		return err
	}
	script, err := storage.ReadScript(ph)
	if err != nil {
		return err
	}
	if err := storage.SaveAs(ph, target); err != nil {
		return err
	}
	if script != "" {
		if err := storage.WriteScript(ph, script); err != nil {
			return err
		}
	}
	if err := storage.UpdateIndex(ctx, ph.Root, ph.Project); err != nil {
		a.log.Warn("index update failed after saveas", slog.Any("err", err))
	}
	a.printf("Saved project %q to %s\n", ph.Project.Name, ph.Root)
	return nil
}

// cmdLogin stores the library password in the OS keychain. An empty line removes it.
func (a *app) cmdLogin() error {
	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		if err := config.DeleteLibraryPassword(); err != nil {
			return err
		}
		a.printf("Library password removed\n")
		return nil
	}
	if err := config.SetLibraryPassword(pw); err != nil {
		return err
	}
	a.printf("Library password stored\n")
	return nil
}

// configKeys lists the printed settings in file order.
var configKeys = []string{
	"general.project_dir", "general.crash_reports",
	"import.strict", "import.snapshot_keep",
	"export.page_size", "export.font_size",
	"library.dsn", "library.timeout_ms",
	"logging.level", "logging.format", "logging.source", "logging.file",
}

func (a *app) cmdConfig(args []string) error {
	if len(args) == 1 && args[0] == "init" {
		if err := config.Save(config.Defaults(), ""); err != nil {
			return err
		}
		p, _ := config.ConfigPath()
		a.printf("Wrote defaults to %s\n", p)
		return nil
	}
	if len(args) != 0 {
		_, _ = fmt.Fprintln(a.stderr, "usage: yarnweave config [init]")
		return errUsage
	}
	data, err := yaml.Marshal(a.cfg)
	if err != nil {
		return err
	}
	var flat map[string]any
	if err := yaml.Unmarshal(data, &flat); err != nil {
		return err
	}
	if p, err := config.ConfigPath(); err == nil {
		a.printf("# %s\n", p)
	}
	for _, key := range configKeys {
		section, field, _ := strings.Cut(key, ".")
		var v any
		if m, ok := flat[section].(map[string]any); ok {
			v = m[field]
		}
		line := fmt.Sprintf("%s = %v", key, v)
		if env, ok := config.EnvOverrideFor(key); ok {
			line += "  (from " + env + ")"
		}
		a.printf("%s\n", line)
	}
	return nil
}

func (a *app) printDiagnostics(diags []yarn.Diagnostic) {
	for _, d := range diags {
		_, _ = fmt.Fprintln(a.stderr, "warning:", d.Error())
	}
}
