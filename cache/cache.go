/*
Copyright © 2018 the sstdiag authors.
This file is part of sstdiag.

sstdiag is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

sstdiag is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with sstdiag.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cache stores the output of processing steps so that they do not
// need to be recomputed.
package cache

import (
	"fmt"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/spatialmodel/sstdiag"
)

// Store holds one field for each combination of processing step and model.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the field stored for the given step and model, and
	// whether there was one.
	Get(step, model string) (*sstdiag.Field, bool)

	// Put stores f for the given step and model.
	Put(step, model string, f *sstdiag.Field) error
}

// Locator is implemented by stores that keep each field at a location
// that can be reported, for example a file path.
type Locator interface {
	Location(step, model string) string
}

// Memory is an in-memory Store that holds up to a fixed number of fields,
// discarding the least recently used ones.
type Memory struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// NewMemory returns a Memory store holding at most maxEntries fields.
// A maxEntries of zero means no limit.
func NewMemory(maxEntries int) *Memory {
	return &Memory{cache: lru.New(maxEntries)}
}

func memoryKey(step, model string) string {
	return fmt.Sprintf("%s\x00%s", step, model)
}

// Get implements Store.
func (m *Memory) Get(step, model string) (*sstdiag.Field, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.cache.Get(memoryKey(step, model))
	if !ok {
		return nil, false
	}
	return f.(*sstdiag.Field), true
}

// Put implements Store.
func (m *Memory) Put(step, model string, f *sstdiag.Field) error {
	if f == nil {
		return fmt.Errorf("cache: storing nil field for step %s, model %s", step, model)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Add(memoryKey(step, model), f)
	return nil
}

// Len returns the number of fields in m.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}

// sanitize makes s usable as a file name.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}
