/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// Project is the on-disk manifest of a dialogue project.
// It is intended to serialize to a human-readable JSON manifest.
type Project struct {
	Name       string       `json:"name"`
	Metadata   Metadata     `json:"metadata,omitempty"`
	Characters []Character  `json:"characters,omitempty"`
	Tree       DialogueTree `json:"tree"`
}

// Metadata contains optional descriptive metadata for a project.
type Metadata struct {
	Game    string `json:"game,omitempty"`
	Authors string `json:"authors,omitempty"`
	Locale  string `json:"locale,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Character is a cast entry that nodes reference through CharacterID.
type Character struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CharacterName resolves id to a display name, or returns "" when unknown.
func (p Project) CharacterName(id string) string {
	for _, c := range p.Characters {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}
