package roborock

import (
	"context"
	"encoding/json"
	"errors"
	"net/mail"
	"strings"

	"github.com/Lash-L/hubcore/internal/flow"
)

// AccountAPI is the slice of the vendor account client the pairing
// flow uses. Narrowed for testability.
type AccountAPI interface {
	ResolveBaseURL(ctx context.Context, email string) error
	RequestCode(ctx context.Context, email string) error
	CodeLogin(ctx context.Context, email, code string) (*UserData, error)
	BaseURL() string
}

const stepCode = "code"

// ConfigFlow is the email code-login pairing wizard.
type ConfigFlow struct {
	account AccountAPI
	email   string
}

// NewConfigFlow creates a fresh pairing flow over the account client.
func NewConfigFlow(account AccountAPI) *ConfigFlow {
	return &ConfigFlow{account: account}
}

// NewFlowFactory returns a flow.Factory producing independent pairing
// attempts, each with its own account client.
func NewFlowFactory(baseURL string) flow.Factory {
	return func() flow.Flow {
		return NewConfigFlow(NewAccountClient(baseURL))
	}
}

func userSchema() []flow.Field {
	return []flow.Field{{Name: "email", Required: true}}
}

func codeSchema() []flow.Field {
	return []flow.Field{{Name: "code", Required: true}}
}

// Step advances the flow.
func (f *ConfigFlow) Step(ctx context.Context, fc *flow.Context, stepID string, input map[string]string) flow.Result {
	switch stepID {
	case flow.StepUser:
		return f.stepUser(ctx, fc, input)
	case stepCode:
		return f.stepCode(ctx, fc, input)
	default:
		return fc.Abort("unknown_step")
	}
}

// stepUser collects the account email and requests a login code.
func (f *ConfigFlow) stepUser(ctx context.Context, fc *flow.Context, input map[string]string) flow.Result {
	if input == nil {
		return fc.ShowForm(flow.StepUser, userSchema(), nil)
	}

	email := strings.TrimSpace(input["email"])
	if _, err := mail.ParseAddress(email); err != nil {
		return fc.ShowForm(flow.StepUser, userSchema(), map[string]string{"email": "invalid_email"})
	}

	if err := fc.SetUniqueID(ctx, strings.ToLower(email)); err != nil {
		if errors.Is(err, flow.ErrAlreadyConfigured) {
			return fc.Abort(flow.ReasonAlreadyConfigured)
		}
		return fc.ShowForm(flow.StepUser, userSchema(), map[string]string{"base": "unknown"})
	}

	if err := f.account.ResolveBaseURL(ctx, email); err != nil {
		return fc.ShowForm(flow.StepUser, userSchema(), map[string]string{"base": "cannot_connect"})
	}

	if err := f.account.RequestCode(ctx, email); err != nil {
		code := "unknown"
		if errors.Is(err, ErrAuth) {
			code = "invalid_email"
		}
		return fc.ShowForm(flow.StepUser, userSchema(), map[string]string{"base": code})
	}

	f.email = email
	return fc.ShowForm(stepCode, codeSchema(), nil)
}

// stepCode exchanges the emailed code for credentials and creates the
// entry.
func (f *ConfigFlow) stepCode(ctx context.Context, fc *flow.Context, input map[string]string) flow.Result {
	if input == nil {
		return fc.ShowForm(stepCode, codeSchema(), nil)
	}
	if f.email == "" {
		// Client skipped the user step
		return fc.ShowForm(flow.StepUser, userSchema(), nil)
	}

	user, err := f.account.CodeLogin(ctx, f.email, strings.TrimSpace(input["code"]))
	if err != nil {
		code := "unknown"
		if errors.Is(err, ErrAuth) {
			code = "invalid_code"
		}
		return fc.ShowForm(stepCode, codeSchema(), map[string]string{"base": code})
	}

	return fc.CreateEntry(ctx, f.email, map[string]any{
		"username":  f.email,
		"user_data": toEntryData(user),
		"base_url":  f.account.BaseURL(),
	})
}

// toEntryData converts the credential bundle to the generic map shape
// config entries persist.
func toEntryData(user *UserData) map[string]any {
	raw, err := json.Marshal(user)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// userDataFromEntry reverses toEntryData during entry setup.
func userDataFromEntry(data map[string]any) (*UserData, error) {
	if data == nil {
		return nil, errors.New("entry has no stored credentials")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var user UserData
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
