// Package demo holds a small catalog application built from action beans.
// The CLI serves it and uses it to exercise route listing and checks.
package demo

import (
	"sort"
	"sync"

	"github.com/stripes-go/stripes/internal/errors"
)

// Widget is a catalog entry
type Widget struct {
	ID    int      `json:"id"`
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Tags  []string `json:"tags,omitempty"`
}

// Catalog is an in-memory widget store safe for concurrent use
type Catalog struct {
	mutex   sync.RWMutex
	widgets map[int]Widget
	nextID  int
}

// NewCatalog creates a catalog holding widgets
func NewCatalog(widgets ...Widget) *Catalog {
	c := &Catalog{widgets: make(map[int]Widget), nextID: 1}
	for _, w := range widgets {
		c.Save(w)
	}
	return c
}

// Get returns the widget with id
func (c *Catalog) Get(id int) (Widget, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	w, ok := c.widgets[id]
	return w, ok
}

// List returns every widget ordered by id
func (c *Catalog) List() []Widget {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	list := make([]Widget, 0, len(c.widgets))
	for _, w := range c.widgets {
		list = append(list, w)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Save inserts w when its id is zero, otherwise replaces it
func (c *Catalog) Save(w Widget) Widget {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if w.ID == 0 {
		w.ID = c.nextID
	}
	if w.ID >= c.nextID {
		c.nextID = w.ID + 1
	}
	c.widgets[w.ID] = w
	return w
}

// Delete removes the widget with id
func (c *Catalog) Delete(id int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, ok := c.widgets[id]; !ok {
		return errors.Newf(errors.ActionNotFoundErrorCode, "widget %d not found", id)
	}
	delete(c.widgets, id)
	return nil
}
