/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	applog "yarnweave/internal/log"
	"yarnweave/internal/yarn"
)

// ScriptFileName is the script kept alongside the manifest.
const ScriptFileName = "dialogue.yarn"

var (
	// ErrEmptyScript is returned by ImportScript when the text holds no node blocks.
	ErrEmptyScript = errors.New("script contains no nodes")
	// ErrDiagnostics is returned by ImportScript in strict mode when the import raised diagnostics.
	ErrDiagnostics = errors.New("script import reported problems")
)

// ScriptFilePath returns the path of the project's script file, or "" for a nil handle.
func ScriptFilePath(ph *ProjectHandle) string {
	if ph == nil || ph.Root == "" {
		return ""
	}
	return filepath.Join(ph.Root, ScriptsDirName, ScriptFileName)
}

// ReadScript returns the project's script text. A missing file yields "".
func ReadScript(ph *ProjectHandle) (string, error) {
	p := ScriptFilePath(ph)
	if p == "" {
		return "", errors.New("invalid ProjectHandle")
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteScript replaces the project's script file atomically.
func WriteScript(ph *ProjectHandle, text string) error {
	p := ScriptFilePath(ph)
	if p == "" {
		return errors.New("invalid ProjectHandle")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return atomicWrite(p, []byte(text))
}

// ImportOptions controls ImportScript.
type ImportOptions struct {
	// Title of the imported tree; empty keeps the current title.
	Title string
	// Strict rejects imports that raised any diagnostic.
	Strict bool
	// KeepSnapshots prunes the script history to this many entries; 0 keeps all.
	KeepSnapshots int
}

// ImportScript parses text into the project's dialogue tree and persists the result:
// manifest, script file, script snapshot and search index.
// Nodes that already existed keep their layout coordinates and the tree keeps its id.
// The import result is returned even when an error stops the write.
func ImportScript(ctx context.Context, ph *ProjectHandle, text string, opts ImportOptions) (yarn.ImportResult, error) {
	if ph == nil {
		return yarn.ImportResult{}, errors.New("nil ProjectHandle")
	}
	l := applog.WithOperation(applog.WithComponent("storage"), "import_script")
	ctx = applog.WithProject(ctx, ph.Root)

	title := opts.Title
	if title == "" {
		title = ph.Project.Tree.Title
	}
	res := yarn.Import(text, title)
	for _, d := range res.Diagnostics {
		l.WarnContext(ctx, "script diagnostic",
			slog.String("kind", d.Kind.String()),
			slog.String("node", d.NodeID),
			slog.Int("line", d.Line),
			slog.String("msg", d.Message))
	}
	if res.Empty() {
		return res, ErrEmptyScript
	}
	if opts.Strict && len(res.Diagnostics) > 0 {
		return res, fmt.Errorf("%w: %w", ErrDiagnostics, res.Err())
	}

	prev := ph.Project.Tree
	if prev.ID != "" {
		res.Tree.ID = prev.ID
	}
	for id, n := range res.Tree.Nodes.All() {
		if old, ok := prev.Nodes.Get(id); ok {
			n.X, n.Y = old.X, old.Y
			if n.CharacterID == "" {
				n.CharacterID = old.CharacterID
			}
			res.Tree.Nodes.Put(n)
		}
	}

	ph.Project.Tree = res.Tree
	if err := Save(ph); err != nil {
		ph.Project.Tree = prev
		return res, err
	}
	if err := WriteScript(ph, text); err != nil {
		return res, fmt.Errorf("write script: %w", err)
	}
	recordSnapshot(applog.WithTree(ctx, res.Tree.ID), l, ph, OriginImport, text, opts.KeepSnapshots)
	l.InfoContext(ctx, "script imported", slog.Int("nodes", res.Tree.Nodes.Len()), slog.Int("diagnostics", len(res.Diagnostics)))
	return res, nil
}

// ExportScript renders the project's tree, writes it to the script file and
// records a snapshot. It returns the rendered text.
func ExportScript(ctx context.Context, ph *ProjectHandle, keepSnapshots int) (string, error) {
	if ph == nil {
		return "", errors.New("nil ProjectHandle")
	}
	l := applog.WithOperation(applog.WithComponent("storage"), "export_script")
	ctx = applog.WithTree(applog.WithProject(ctx, ph.Root), ph.Project.Tree.ID)
	text := yarn.Export(ph.Project.Tree)
	if err := WriteScript(ph, text); err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}
	recordSnapshot(ctx, l, ph, OriginExport, text, keepSnapshots)
	return text, nil
}

// recordSnapshot stores the script history and refreshes the index. Failures only
// affect derived data and are logged.
func recordSnapshot(ctx context.Context, l *slog.Logger, ph *ProjectHandle, origin, text string, keep int) {
	if err := SaveScriptSnapshot(ctx, ph, origin, text, time.Now()); err != nil {
		l.WarnContext(ctx, "save script snapshot failed", slog.Any("err", err))
	}
	if keep > 0 {
		if _, err := PruneOldScriptSnapshots(ctx, ph, keep); err != nil {
			l.WarnContext(ctx, "prune script snapshots failed", slog.Any("err", err))
		}
	}
	if err := UpdateIndex(ctx, ph.Root, ph.Project); err != nil {
		l.WarnContext(ctx, "update index failed", slog.Any("err", err))
	}
}
