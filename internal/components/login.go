package components

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gotrs-io/dynamics-e2e/internal/auth"
	"github.com/gotrs-io/dynamics-e2e/internal/locator"
	"github.com/gotrs-io/dynamics-e2e/internal/settle"
)

const (
	// StaySignedInTimeout bounds the soft wait for the "Stay signed in?"
	// prompt, which Microsoft only sometimes shows.
	StaySignedInTimeout = 10 * time.Second
	// PortalRedirectTimeout bounds the wait for the portal after B2C.
	PortalRedirectTimeout = 15 * time.Second
	// LoginOutcomeTimeout bounds the wait for the public-file login result.
	LoginOutcomeTimeout = 15 * time.Second
	// LoginCompleteTimeout bounds WaitForLogin.
	LoginCompleteTimeout = 30 * time.Second
)

// ErrLoginRejected is returned when a login form shows an error banner.
var ErrLoginRejected = errors.New("login rejected")

// LoginPage is the Microsoft sign-in page.
type LoginPage struct {
	*Actor
}

var (
	_ auth.Form = (*LoginPage)(nil)
	_ auth.Form = (*PortalSignIn)(nil)

	msEmail    = locator.Selectors(`input[type="email"]`, `input[name="loginfmt"]`)
	msNext     = locator.Candidates{{Selector: `input[type="submit"][value="Next"]`}, locator.Named(`button[type="submit"]`, "Next")}
	msPassword = locator.Selectors(`input[type="password"]`, `input[name="passwd"]`)
	msSignIn   = locator.Candidates{{Selector: `input[type="submit"][value="Sign in"]`}, locator.Named(`button[type="submit"]`, "Sign in")}
	msNo       = locator.Selectors(`input[value="No"]`, `#idBtn_Back`)
)

func NewLoginPage(a *Actor) *LoginPage { return &LoginPage{Actor: a} }

// Login signs in with email and password, declining to stay signed in when
// asked.
func (p *LoginPage) Login(ctx context.Context, email, password string) error {
	if err := p.Fill(ctx, "email", msEmail, email); err != nil {
		return err
	}
	if err := p.Click(ctx, "next", msNext); err != nil {
		return err
	}
	if err := p.Fill(ctx, "password", msPassword, password); err != nil {
		return err
	}
	if err := p.Click(ctx, "sign in", msSignIn); err != nil {
		return err
	}
	shown, err := p.Wait(ctx, "stay signed in prompt", p.resolves(msNo, locator.Click), StaySignedInTimeout, settle.Soft)
	if err != nil || !shown {
		return err
	}
	return p.Click(ctx, "stay signed in: no", msNo)
}

// PortalLoginPage is the Power Pages sign-in form and its password reset.
type PortalLoginPage struct {
	*Actor
	// Idle, when set, is awaited softly after submitting the form.
	Idle settle.Predicate
}

var (
	portalSignIn = locator.Candidates{
		locator.NamedExactly("button", "Sign in"),
		{Selector: "button#next"},
		{Selector: `input[type="submit"][value="Sign in"]`},
	}
	portalEmail = locator.Candidates{
		locator.WithAttr("input", "aria-label", locator.AttrEquals, "Email address"),
		{Selector: "input#email"},
		{Selector: `input[type="email"]`},
		locator.WithAttr("input", "placeholder", locator.AttrEquals, "Email address"),
	}
	portalPassword = locator.Candidates{
		locator.WithAttr("input", "aria-label", locator.AttrEquals, "Password"),
		{Selector: "input#password"},
		{Selector: `input[type="password"]`},
	}
	forgotPassword = locator.Candidates{
		locator.Named("a", "Forgot your password?"),
		{Selector: "a#forgotPassword"},
	}
	sendVerification = locator.Candidates{
		locator.Named("button", "Send verification code"),
		{Selector: "button#emailVerificationControl_but_send_code"},
	}
	emailVerificationControl = locator.Selectors("#emailVerificationControl")
	resendVerification       = locator.Candidates{
		locator.Named("a", "Send a new verification code"),
		locator.Named("button", "Send new code"),
		{Selector: "#emailVerificationControl_but_send_new_code"},
	}
)

func NewPortalLoginPage(a *Actor) *PortalLoginPage { return &PortalLoginPage{Actor: a} }

// Login opens the sign-in form, fills it in and submits it.
func (p *PortalLoginPage) Login(ctx context.Context, username, password string) error {
	if err := p.Click(ctx, "sign in", portalSignIn); err != nil {
		return err
	}
	if err := p.Click(ctx, "email address", portalEmail); err != nil {
		return err
	}
	if err := p.Fill(ctx, "email address", portalEmail, username); err != nil {
		return err
	}
	if err := p.Click(ctx, "password", portalPassword); err != nil {
		return err
	}
	if err := p.Fill(ctx, "password", portalPassword, password); err != nil {
		return err
	}
	if err := p.Click(ctx, "sign in submit", portalSignIn); err != nil {
		return err
	}
	if p.Idle == nil {
		return nil
	}
	_, err := p.Wait(ctx, "page idle", p.Idle, p.timeout(), settle.Soft)
	return err
}

// NavigateToForgotPassword opens the password reset flow.
func (p *PortalLoginPage) NavigateToForgotPassword(ctx context.Context) error {
	if err := p.Click(ctx, "sign in", portalSignIn); err != nil {
		return err
	}
	return p.Click(ctx, "forgot password", forgotPassword)
}

// SendVerificationCode requests a reset code, entering email first when
// given.
func (p *PortalLoginPage) SendVerificationCode(ctx context.Context, email string) error {
	if email != "" {
		if err := p.Click(ctx, "email address", portalEmail); err != nil {
			return err
		}
		if err := p.Fill(ctx, "email address", portalEmail, email); err != nil {
			return err
		}
	}
	return p.Click(ctx, "send verification code", sendVerification)
}

var (
	createAccount    = locator.Candidates{locator.Named("a", "Create an account"), {Selector: "a#createAccount"}}
	verificationCode = locator.Candidates{
		locator.WithAttr("input", "aria-label", locator.AttrEquals, "Verification Code"),
		{Selector: "input#emailVerificationCode"},
	}
	verifyCode = locator.Candidates{
		locator.Named("button", "Verify code"),
		{Selector: "button#emailVerificationControl_but_verify_code"},
	}
	verificationAlert = `[role="alert"], .error.itemLevel, .error.pageLevel`
)

// OpenCreateAccount follows the portal's Create an account link.
func (p *PortalLoginPage) OpenCreateAccount(ctx context.Context) error {
	return p.Click(ctx, "create an account", createAccount)
}

// VerifyCode enters code in the email verification control and submits it.
func (p *PortalLoginPage) VerifyCode(ctx context.Context, code string) error {
	if err := p.Fill(ctx, "verification code", verificationCode, code); err != nil {
		return err
	}
	return p.Click(ctx, "verify code", verifyCode)
}

// VerificationError waits for a visible alert and returns its text.
func (p *PortalLoginPage) VerificationError(ctx context.Context) (string, error) {
	var msg string
	shown := func(context.Context) (bool, error) {
		els, err := p.Page.QueryAll(verificationAlert)
		if err != nil {
			return false, err
		}
		for _, el := range els {
			if ok, _ := el.IsVisible(); !ok {
				continue
			}
			if msg = text(el); msg != "" {
				return true, nil
			}
		}
		return false, nil
	}
	if _, err := p.Wait(ctx, "verification error", shown, p.timeout(), settle.Hard); err != nil {
		return "", err
	}
	return msg, nil
}

func (p *PortalLoginPage) ClickResendVerificationCode(ctx context.Context) error {
	return p.Click(ctx, "send a new verification code", resendVerification)
}

func (p *PortalLoginPage) IsResendLinkVisible(ctx context.Context) (bool, error) {
	return p.Exists(ctx, "send a new verification code", resendVerification, locator.Read)
}

func (p *PortalLoginPage) IsEmailVerificationVisible(ctx context.Context) (bool, error) {
	return p.Exists(ctx, "email verification", emailVerificationControl, locator.Read)
}

var accountHome = locator.Candidates{
	locator.NamedExactly(`h1, h2, h3, [role="heading"]`, "Account Home"),
}

// PortalSignIn is the two-stage portal login: Microsoft B2C first, then the
// portal's own form.
type PortalSignIn struct {
	Microsoft *LoginPage
	Portal    *PortalLoginPage
}

func NewPortalSignIn(a *Actor) *PortalSignIn {
	return &PortalSignIn{Microsoft: NewLoginPage(a), Portal: NewPortalLoginPage(a)}
}

func (s *PortalSignIn) Login(ctx context.Context, username, password string) error {
	if err := s.Microsoft.Login(ctx, username, password); err != nil {
		return fmt.Errorf("b2c: %w", err)
	}
	if _, err := s.Portal.ResolveWithin(ctx, "portal sign in", portalSignIn, locator.Read, PortalRedirectTimeout); err != nil {
		return fmt.Errorf("waiting for portal: %w", err)
	}
	if err := s.Portal.Login(ctx, username, password); err != nil {
		return fmt.Errorf("portal: %w", err)
	}
	return nil
}

// Ready holds once the account home heading shows and the sign-in button is
// gone.
func (s *PortalSignIn) Ready(ctx context.Context) (bool, error) {
	home, err := s.Portal.Exists(ctx, "account home", accountHome, locator.Read)
	if err != nil || !home {
		return false, err
	}
	signIn, err := s.Portal.Exists(ctx, "sign in", portalSignIn[:1], locator.Read)
	return !signIn, err
}

// PublicFileLoginPage is the password gate in front of the public file.
type PublicFileLoginPage struct {
	*Actor
}

var (
	publicFilePassword = locator.Selectors(`input[type="password"]`, `input[name="password"]`, `input[id="password"]`)
	publicFileSubmit   = locator.Candidates{
		{Selector: `button.btn.swabutton.btn-primary.ml-2[onclick="submitPassword()"]`},
		{Selector: `button.btn.swabutton.btn-primary.ml-2`},
		locator.Named("button", "Submit"),
	}
	publicFileError = `.error, .alert-danger, [class*="error"], [class*="alert"]`
)

func NewPublicFileLoginPage(a *Actor) *PublicFileLoginPage { return &PublicFileLoginPage{Actor: a} }

// Form adapts the password-only login to auth.Form.
func (p *PublicFileLoginPage) Form() auth.Form {
	return auth.FormFunc(func(ctx context.Context, _, password string) error {
		return p.Login(ctx, password)
	})
}

// Login submits password and waits for the form to go away or an error
// banner to appear.
func (p *PublicFileLoginPage) Login(ctx context.Context, password string) error {
	if err := p.Fill(ctx, "password", publicFilePassword, password); err != nil {
		return err
	}
	if err := p.Click(ctx, "submit", publicFileSubmit); err != nil {
		return err
	}
	if _, err := p.Wait(ctx, "login outcome", p.outcome, LoginOutcomeTimeout, settle.Hard); err != nil {
		return err
	}
	if msg, shown := p.errorBanner(); shown {
		return fmt.Errorf("%w: %s", ErrLoginRejected, msg)
	}
	return nil
}

// outcome holds once the form is gone or an error banner has text.
func (p *PublicFileLoginPage) outcome(ctx context.Context) (bool, error) {
	for _, sel := range []string{`input[type="password"]`, `button.btn.swabutton.btn-primary.ml-2`} {
		present, err := locator.Present(p.Page, sel)(ctx)
		if err != nil {
			return false, err
		}
		if !present {
			return true, nil
		}
	}
	_, shown := p.errorBanner()
	return shown, nil
}

func (p *PublicFileLoginPage) errorBanner() (string, bool) {
	els, err := p.Page.QueryAll(publicFileError)
	if err != nil {
		return "", false
	}
	for _, el := range els {
		if ok, _ := el.IsVisible(); !ok {
			continue
		}
		if t := text(el); t != "" {
			return t, true
		}
	}
	return "", false
}

// IsLoggedIn reports whether the submit button has gone.
func (p *PublicFileLoginPage) IsLoggedIn(ctx context.Context) (bool, error) {
	onLogin, err := p.Exists(ctx, "submit", publicFileSubmit, locator.Read)
	return !onLogin, err
}

// WaitForLogin waits for the password field to disappear.
func (p *PublicFileLoginPage) WaitForLogin(ctx context.Context) error {
	_, err := p.Wait(ctx, "password field gone", settle.Not(locator.Present(p.Page, `input[type="password"]`)), LoginCompleteTimeout, settle.Hard)
	return err
}
