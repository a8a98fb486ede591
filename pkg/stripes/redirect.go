package stripes

import (
	"github.com/stripes-go/stripes/internal/errors"
	"github.com/stripes-go/stripes/pkg/stripes/action"
)

// RedirectTo redirects to the URL binding of bean, filled in from values,
// and flashes the bean so the next request reuses it
func (d *Dispatcher) RedirectTo(bean action.ActionBean, values map[string]string) (*action.RedirectResolution, error) {
	def, ok := d.beans.BeanOf(bean)
	if !ok {
		return nil, errors.Newf(errors.ActionNotFoundErrorCode, "%T is not a registered action bean", bean)
	}

	res := action.Redirect(def.Binding.Render(values))
	ctx := bean.Context()
	if ctx == nil {
		return res, nil
	}
	if err := ctx.FlashBean(def.Binding.Path, bean); err != nil {
		return nil, err
	}
	return res, nil
}
