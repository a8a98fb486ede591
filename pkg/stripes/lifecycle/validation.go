package lifecycle

import (
	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/validation"
)

// RunValidationMethods invokes methods in order against bean. A method runs
// when it applies to event and either no errors exist or it is flagged to
// run regardless; WhenDefault follows alwaysInvoke. The first method error
// aborts the rest.
func RunValidationMethods(methods []action.ValidationMethod, bean action.ActionBean, errs *validation.Errors, event string, alwaysInvoke bool) error {
	for _, m := range methods {
		if !validation.Applies(m.On, event) {
			continue
		}
		if !errs.Empty() {
			switch m.When {
			case action.WhenAlways:
			case action.WhenDefault:
				if !alwaysInvoke {
					continue
				}
			default:
				continue
			}
		}
		if err := m.Func(bean, errs); err != nil {
			return err
		}
	}
	return nil
}
