package demo

import (
	"strconv"

	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/validation"
)

// WidgetAction views and edits one catalog widget
type WidgetAction struct {
	action.BaseAction
	app *App

	ID     int
	Widget Widget
}

func (a *App) widgetDescriptor() *action.Descriptor {
	return &action.Descriptor{
		Name:    "widget",
		Binding: "/widget/{id}/{$event}",
		New:     func() action.ActionBean { return &WidgetAction{app: a} },
		Handlers: []action.Handler{
			action.Handle("view", (*WidgetAction).View).AsDefault(),
			action.Handle("list", (*WidgetAction).List).SkipBinding(),
			action.Handle("edit", (*WidgetAction).Edit),
			action.Handle("save", (*WidgetAction).Save).Only("POST"),
			action.Handle("delete", (*WidgetAction).Delete).Only("POST", "DELETE"),
		},
		Validations: []validation.Metadata{
			{Property: "widget.name", Required: true, On: []string{"save"}, MinLength: validation.Int(2), MaxLength: validation.Int(40)},
			{Property: "widget.price", Required: true, On: []string{"save"}, MinValue: validation.Float(0)},
			{Property: "widget.tags", Mask: `[a-z][a-z0-9-]*`},
		},
		ValidationMethods: []action.ValidationMethod{
			action.Validate("uniqueName", (*WidgetAction).validateUniqueName).OnEvents("save"),
		},
		Before: []action.Hook{
			action.NewHook("load", (*WidgetAction).load, action.BindingAndValidation),
		},
		Strict: &action.StrictBinding{
			Default: action.Deny,
			Allow:   []string{"id", "widget.**"},
			Deny:    []string{"widget.id"},
		},
	}
}

// load fills the bean from the catalog before request values are bound
func (w *WidgetAction) load() (action.Resolution, error) {
	id, err := strconv.Atoi(w.Context().Request.Param("id"))
	if err != nil || id == 0 {
		return nil, nil
	}
	if existing, ok := w.app.Catalog.Get(id); ok {
		w.Widget = existing
	}
	return nil, nil
}

func (w *WidgetAction) validateUniqueName(errs *validation.Errors) error {
	for _, other := range w.app.Catalog.List() {
		if other.ID != w.ID && other.Name == w.Widget.Name {
			errs.Add("widget.name", validation.NewError("widget", "nameTaken", w.Widget.Name))
		}
	}
	return nil
}

// View shows the widget
func (w *WidgetAction) View() (action.Resolution, error) {
	if _, ok := w.app.Catalog.Get(w.ID); !ok {
		return nil, action.ErrNotFound("no widget " + strconv.Itoa(w.ID))
	}
	return action.Forward("/widget/view.html"), nil
}

// List shows the catalog
func (w *WidgetAction) List() (action.Resolution, error) {
	w.Context().Request.SetAttribute("widgets", w.app.Catalog.List())
	return action.Forward("/widget/list.html"), nil
}

// Edit shows the edit form
func (w *WidgetAction) Edit() (action.Resolution, error) {
	return action.Forward("/widget/edit.html"), nil
}

// Save stores the widget and redirects to its page
func (w *WidgetAction) Save() (action.Resolution, error) {
	w.Widget.ID = w.ID
	w.Widget = w.app.Catalog.Save(w.Widget)
	w.ID = w.Widget.ID
	if err := w.Context().AddMessage("Saved " + w.Widget.Name); err != nil {
		return nil, err
	}
	id := strconv.Itoa(w.ID)
	return w.app.redirectTo(w, map[string]string{"id": id}, "/widget/"+id)
}

// Delete removes the widget and returns to the list
func (w *WidgetAction) Delete() (action.Resolution, error) {
	if err := w.app.Catalog.Delete(w.ID); err != nil {
		return nil, action.ErrNotFound(err.Error())
	}
	if err := w.Context().AddMessage("Deleted widget " + strconv.Itoa(w.ID)); err != nil {
		return nil, err
	}
	return action.Redirect("/widget/list"), nil
}
