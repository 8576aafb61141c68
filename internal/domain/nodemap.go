/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
)

// NodeMap is an insertion-ordered map of nodes keyed by id.
// The zero value is ready to use. Copies share storage; use Clone for an
// independent map. It marshals to a JSON object whose keys keep
// insertion order, so exported scripts and manifests are stable.
type NodeMap struct {
	keys []string
	byID map[string]DialogueNode
}

// Put inserts n or replaces the node with the same id in place.
func (m *NodeMap) Put(n DialogueNode) {
	if m.byID == nil {
		m.byID = make(map[string]DialogueNode)
	}
	if _, ok := m.byID[n.ID]; !ok {
		m.keys = append(m.keys, n.ID)
	}
	m.byID[n.ID] = n
}

// Get returns the node with the given id.
func (m NodeMap) Get(id string) (DialogueNode, bool) {
	n, ok := m.byID[id]
	return n, ok
}

// Has reports whether id is present.
func (m NodeMap) Has(id string) bool {
	_, ok := m.byID[id]
	return ok
}

// Len returns the number of nodes.
func (m NodeMap) Len() int { return len(m.keys) }

// Keys returns the node ids in insertion order.
func (m NodeMap) Keys() []string { return append([]string(nil), m.keys...) }

// Delete removes the node with the given id.
func (m *NodeMap) Delete(id string) {
	if _, ok := m.byID[id]; !ok {
		return
	}
	delete(m.byID, id)
	keys := make([]string, 0, len(m.keys)-1)
	for _, k := range m.keys {
		if k != id {
			keys = append(keys, k)
		}
	}
	m.keys = keys
}

// Clone returns an independent copy of the map.
func (m NodeMap) Clone() NodeMap {
	out := NodeMap{keys: append([]string(nil), m.keys...), byID: make(map[string]DialogueNode, len(m.byID))}
	for k, v := range m.byID {
		out.byID[k] = v
	}
	return out
}

// All iterates nodes in insertion order.
func (m NodeMap) All() iter.Seq2[string, DialogueNode] {
	return func(yield func(string, DialogueNode) bool) {
		for _, k := range m.keys {
			if !yield(k, m.byID[k]) {
				return
			}
		}
	}
}

func (m NodeMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.byID[k])
		if err != nil {
			return nil, fmt.Errorf("marshal node %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *NodeMap) UnmarshalJSON(data []byte) error {
	*m = NodeMap{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("nodes: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("nodes: expected string key, got %v", tok)
		}
		var n DialogueNode
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("nodes: decode %q: %w", key, err)
		}
		if n.ID == "" {
			n.ID = key
		}
		m.Put(n)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
