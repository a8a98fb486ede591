package demo

import (
	"strconv"

	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/validation"
)

// ItemsAction is the catalog's JSON API. The HTTP method selects the
// handler.
type ItemsAction struct {
	action.BaseAction
	app *App

	ID   int
	Item Widget
}

func (a *App) itemsDescriptor() *action.Descriptor {
	return &action.Descriptor{
		Name:    "items",
		Binding: "/api/items/{id}",
		New:     func() action.ActionBean { return &ItemsAction{app: a} },
		REST:    true,
		Handlers: []action.Handler{
			action.Handle("get", (*ItemsAction).Get),
			action.Handle("post", (*ItemsAction).Post),
			action.Handle("put", (*ItemsAction).Put),
			action.Handle("delete", (*ItemsAction).Delete).SkipBinding(),
		},
		Validations: []validation.Metadata{
			{Property: "id", Required: true, On: []string{"put"}},
			{Property: "item.name", Required: true, On: []string{"post", "put"}, MinLength: validation.Int(2)},
			{Property: "item.price", MinValue: validation.Float(0)},
		},
	}
}

// Get returns one item, or all of them without an id
func (i *ItemsAction) Get() (action.Resolution, error) {
	if i.ID == 0 {
		return action.OK(i.app.Catalog.List()), nil
	}
	w, ok := i.app.Catalog.Get(i.ID)
	if !ok {
		return nil, action.ErrNotFound("item not found")
	}
	return action.OK(w), nil
}

// Post creates an item
func (i *ItemsAction) Post() (action.Resolution, error) {
	i.Item.ID = 0
	return action.Created(i.app.Catalog.Save(i.Item)), nil
}

// Put replaces an item
func (i *ItemsAction) Put() (action.Resolution, error) {
	if _, ok := i.app.Catalog.Get(i.ID); !ok {
		return nil, action.ErrNotFound("item not found")
	}
	i.Item.ID = i.ID
	return action.OK(i.app.Catalog.Save(i.Item)), nil
}

// Delete removes an item. Binding is skipped, so the id is read raw.
func (i *ItemsAction) Delete() (action.Resolution, error) {
	id, err := strconv.Atoi(i.Context().Request.Param("id"))
	if err != nil {
		return nil, action.ErrBadRequest("item id must be a number")
	}
	if err := i.app.Catalog.Delete(id); err != nil {
		return nil, action.ErrNotFound("item not found")
	}
	return action.NoContent(), nil
}
