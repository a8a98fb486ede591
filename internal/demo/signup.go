package demo

import (
	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/validation"
)

// Account is collected over the signup wizard's pages
type Account struct {
	Email    string
	Password string
	Confirm  string
	Company  string
	Seats    int
	Agree    bool
}

// SignupAction is a two-page wizard. Required fields are checked only when
// they were rendered on the submitted page.
type SignupAction struct {
	action.BaseAction

	Account Account
}

func (a *App) signupDescriptor() *action.Descriptor {
	return &action.Descriptor{
		Name:    "signup",
		Binding: "/signup/{$event}",
		New:     func() action.ActionBean { return &SignupAction{} },
		Handlers: []action.Handler{
			action.Handle("start", (*SignupAction).Start).AsDefault(),
			action.Handle("next", (*SignupAction).Next).Only("POST"),
			action.Handle("finish", (*SignupAction).Finish).Only("POST"),
			action.Handle("cancel", (*SignupAction).Cancel).SkipValidation(true),
		},
		Validations: []validation.Metadata{
			{Property: "account.email", Required: true, Tag: "email"},
			{Property: "account.password", Required: true, MinLength: validation.Int(8), NoTrim: true},
			{Property: "account.confirm", Required: true, NoTrim: true},
			{Property: "account.company", Required: true, On: []string{"finish"}},
			{Property: "account.seats", MinValue: validation.Float(1), Expression: "this <= 500"},
		},
		ValidationMethods: []action.ValidationMethod{
			action.Validate("passwordsMatch", (*SignupAction).passwordsMatch).OnEvents("next", "finish"),
			action.Validate("terms", (*SignupAction).terms).OnEvents("finish").WithPriority(10),
		},
		Wizard: &action.Wizard{StartEvents: []string{"start"}},
	}
}

func (s *SignupAction) passwordsMatch(errs *validation.Errors) error {
	if s.Account.Password != s.Account.Confirm {
		errs.Add("account.confirm", validation.NewError("signup", "passwordMismatch"))
	}
	return nil
}

func (s *SignupAction) terms(errs *validation.Errors) error {
	if !s.Account.Agree {
		errs.AddGlobal(validation.NewError("signup", "mustAgree"))
	}
	return nil
}

// Start shows the first page
func (s *SignupAction) Start() (action.Resolution, error) {
	return action.Forward("/signup/account.html"), nil
}

// Next shows the second page
func (s *SignupAction) Next() (action.Resolution, error) {
	return action.Forward("/signup/company.html"), nil
}

// Finish completes the signup
func (s *SignupAction) Finish() (action.Resolution, error) {
	if err := s.Context().AddMessage("Welcome, " + s.Account.Email); err != nil {
		return nil, err
	}
	return action.Redirect("/widget/list"), nil
}

// Cancel abandons the wizard
func (s *SignupAction) Cancel() (action.Resolution, error) {
	return action.Redirect("/widget/list"), nil
}
