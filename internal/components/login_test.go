package components

import (
	"context"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/dynamics-e2e/internal/settle"
	"github.com/gotrs-io/dynamics-e2e/internal/snapshot"
)

const microsoftHTML = `<html><body>
<div id="ms">
  <input type="email" name="loginfmt">
  <input type="submit" value="Next">
  <input type="password" name="passwd">
  <input type="submit" value="Sign in">
  <input type="submit" value="No" id="idBtn_Back" style="display:none">
</div>
</body></html>`

// fieldEvents describes inputs by name, falling back to their value.
func fieldEvents(ev *[]string) func(*snapshot.Surface, snapshot.Action, *goquery.Selection) {
	return func(_ *snapshot.Surface, a snapshot.Action, target *goquery.Selection) {
		if target == nil {
			*ev = append(*ev, a.Kind+" "+a.Value)
			return
		}
		desc := target.AttrOr("name", target.AttrOr("value", ""))
		if a.Kind == "fill" {
			desc += "=" + a.Value
		}
		*ev = append(*ev, a.Kind+" "+desc)
	}
}

func TestMicrosoftLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("declines to stay signed in", func(t *testing.T) {
		s := parse(t, microsoftHTML)
		var ev []string
		record := fieldEvents(&ev)
		s.OnAction = func(s *snapshot.Surface, a snapshot.Action, target *goquery.Selection) {
			record(s, a, target)
			if target != nil && target.Is(`input[value="Sign in"]`) {
				show(s, "#idBtn_Back")
			}
		}
		a, fake := newActor(t, s)
		start := fake.Now()

		require.NoError(t, NewLoginPage(a).Login(ctx, "tester@contoso.com", "hunter2"))
		assert.Equal(t, []string{
			"fill loginfmt=tester@contoso.com",
			"click Next",
			"fill passwd=hunter2",
			"click Sign in",
			"click No",
		}, ev)
		assert.Zero(t, fake.Now().Sub(start))
	})

	t.Run("prompt never shown", func(t *testing.T) {
		s := parse(t, microsoftHTML)
		var ev []string
		s.OnAction = fieldEvents(&ev)
		a, fake := newActor(t, s)
		start := fake.Now()

		require.NoError(t, NewLoginPage(a).Login(ctx, "tester@contoso.com", "hunter2"))
		assert.Len(t, ev, 4)
		assert.Equal(t, StaySignedInTimeout, fake.Now().Sub(start))
	})

	t.Run("missing email field", func(t *testing.T) {
		s := parse(t, `<html><body><p>Pick an account</p></body></html>`)
		a, _ := newActor(t, s)
		err := NewLoginPage(a).Login(ctx, "tester@contoso.com", "hunter2")
		assert.ErrorContains(t, err, "email")
	})
}

const portalHTML = `<html><body>
<nav><button id="signin">Sign in</button></nav>
<form id="localAccountForm" style="display:none">
  <input id="email" type="email" aria-label="Email address">
  <input id="password" type="password" aria-label="Password">
  <button id="next">Sign in</button>
  <a id="forgotPassword" href="#forgot">Forgot your password?</a>
</form>
<div id="emailVerificationControl" style="display:none">
  <input id="emailverify" type="email" aria-label="Email address">
  <button id="emailVerificationControl_but_send_code">Send verification code</button>
  <a id="emailVerificationControl_but_send_new_code" href="#resend" style="display:none">Send a new verification code</a>
</div>
</body></html>`

func portalPage(t *testing.T) (*PortalLoginPage, *events) {
	t.Helper()
	s := parse(t, portalHTML)
	var ev events
	s.OnAction = func(s *snapshot.Surface, a snapshot.Action, target *goquery.Selection) {
		ev.add(a, target)
		switch {
		case target == nil:
		case target.Is("button#signin"):
			target.Remove()
			show(s, "#localAccountForm")
		case target.Is("a#forgotPassword"):
			hide(s, "#localAccountForm")
			show(s, "#emailVerificationControl")
		case target.Is("#emailVerificationControl_but_send_code"):
			show(s, "#emailVerificationControl_but_send_new_code")
		}
	}
	a, _ := newActor(t, s)
	return NewPortalLoginPage(a), &ev
}

func TestPortalLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("login", func(t *testing.T) {
		p, ev := portalPage(t)
		idle := 0
		p.Idle = func(context.Context) (bool, error) {
			idle++
			return true, nil
		}

		require.NoError(t, p.Login(ctx, "tester@contoso.com", "hunter2"))
		assert.Equal(t, events{
			"click Sign in",
			"click Email address",
			"fill Email address=tester@contoso.com",
			"click Password",
			"fill Password=hunter2",
			"click Sign in",
		}, *ev)
		assert.Equal(t, 1, idle)
	})

	t.Run("forgot password", func(t *testing.T) {
		p, ev := portalPage(t)
		visible, err := p.IsEmailVerificationVisible(ctx)
		require.NoError(t, err)
		assert.False(t, visible)

		require.NoError(t, p.NavigateToForgotPassword(ctx))
		visible, err = p.IsEmailVerificationVisible(ctx)
		require.NoError(t, err)
		assert.True(t, visible)

		resend, err := p.IsResendLinkVisible(ctx)
		require.NoError(t, err)
		assert.False(t, resend)

		require.NoError(t, p.SendVerificationCode(ctx, "tester@contoso.com"))
		resend, err = p.IsResendLinkVisible(ctx)
		require.NoError(t, err)
		assert.True(t, resend)

		require.NoError(t, p.ClickResendVerificationCode(ctx))
		assert.Equal(t, events{
			"click Sign in",
			"click #forgot",
			"click Email address",
			"fill Email address=tester@contoso.com",
			"click Send verification code",
			"click #resend",
		}, *ev)
	})
}

const createAccountHTML = `<html><body>
<h1>Participate in a trade remedies investigation</h1>
<a id="createAccount" href="#signup">Create an account</a>
<div id="emailVerificationControl">
  <input type="email" id="email" aria-label="Email address">
  <button id="emailVerificationControl_but_send_code">Send verification code</button>
  <input type="text" id="emailVerificationCode" aria-label="Verification Code">
  <button id="emailVerificationControl_but_verify_code">Verify code</button>
  <div class="error itemLevel" role="alert" style="display:none"></div>
</div>
</body></html>`

func TestPortalCreateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid code shows an alert", func(t *testing.T) {
		s := parse(t, createAccountHTML)
		var ev []string
		record := fieldEvents(&ev)
		s.OnAction = func(s *snapshot.Surface, a snapshot.Action, target *goquery.Selection) {
			record(s, a, target)
			if target != nil && target.Is("#emailVerificationControl_but_verify_code") {
				show(s, `[role="alert"]`)
				s.Document().Find(`[role="alert"]`).SetText("The verification code you have entered does not match our records.")
			}
		}
		a, _ := newActor(t, s)
		p := NewPortalLoginPage(a)

		require.NoError(t, p.OpenCreateAccount(ctx))
		require.NoError(t, p.SendVerificationCode(ctx, "tester@contoso.com"))
		require.NoError(t, p.VerifyCode(ctx, "fafsfsf"))

		msg, err := p.VerificationError(ctx)
		require.NoError(t, err)
		assert.Contains(t, msg, "does not match our records")
		assert.Equal(t, "fill =fafsfsf", ev[len(ev)-2])
	})

	t.Run("no alert times out", func(t *testing.T) {
		a, fake := newActor(t, parse(t, createAccountHTML))
		start := fake.Now()

		_, err := NewPortalLoginPage(a).VerificationError(ctx)
		assert.ErrorIs(t, err, settle.ErrReadinessTimeout)
		assert.Equal(t, a.Timeout, fake.Now().Sub(start))
	})
}

func TestPortalSignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("microsoft then portal", func(t *testing.T) {
		s := parse(t, `<html><body>`+
			`<div id="ms"><input type="email" name="loginfmt"><input type="submit" value="Next">`+
			`<input type="password" name="passwd"><input type="submit" value="Sign in"></div>`+
			`<div id="portal" style="display:none">`+
			`<button id="signin">Sign in</button>`+
			`<input id="email" type="email" aria-label="Email address">`+
			`<input id="password" type="password" aria-label="Password">`+
			`</div></body></html>`)
		var fills int
		s.OnAction = func(s *snapshot.Surface, a snapshot.Action, target *goquery.Selection) {
			if a.Kind == "fill" {
				fills++
			}
			if target != nil && target.Is(`input[value="Sign in"]`) {
				s.Document().Find("#ms").Remove()
				show(s, "#portal")
			}
		}
		a, fake := newActor(t, s)
		start := fake.Now()

		require.NoError(t, NewPortalSignIn(a).Login(ctx, "tester@contoso.com", "hunter2"))
		assert.Equal(t, 4, fills)
		assert.Equal(t, StaySignedInTimeout, fake.Now().Sub(start))
	})

	t.Run("ready", func(t *testing.T) {
		for name, tc := range map[string]struct {
			html string
			want bool
		}{
			"account home":       {`<h1>Account Home</h1>`, true},
			"still signing in":   {`<h1>Account Home</h1><button>Sign in</button>`, false},
			"somewhere else":     {`<h1>Cases</h1>`, false},
			"hidden sign in ok":  {`<h2> account   home </h2><button style="display:none">Sign in</button>`, true},
			"heading role works": {`<div role="heading">Account Home</div>`, true},
		} {
			t.Run(name, func(t *testing.T) {
				a, _ := newActor(t, parse(t, `<html><body>`+tc.html+`</body></html>`))
				ready, err := NewPortalSignIn(a).Ready(ctx)
				require.NoError(t, err)
				assert.Equal(t, tc.want, ready)
			})
		}
	})
}

const publicFileHTML = `<html><body>
<form id="gate">
  <input type="password" id="password" name="password">
  <button class="btn swabutton btn-primary ml-2" onclick="submitPassword()">Submit</button>
</form>
</body></html>`

func TestPublicFileLogin(t *testing.T) {
	ctx := context.Background()

	page := func(t *testing.T, react func(s *snapshot.Surface)) (*PublicFileLoginPage, *snapshot.Surface) {
		s := parse(t, publicFileHTML)
		s.OnAction = func(s *snapshot.Surface, a snapshot.Action, target *goquery.Selection) {
			if react != nil && a.Kind == "click" {
				react(s)
			}
		}
		a, _ := newActor(t, s)
		return NewPublicFileLoginPage(a), s
	}

	t.Run("accepted", func(t *testing.T) {
		p, _ := page(t, func(s *snapshot.Surface) { s.Document().Find("#gate").Remove() })
		loggedIn, err := p.IsLoggedIn(ctx)
		require.NoError(t, err)
		assert.False(t, loggedIn)

		require.NoError(t, p.Form().Login(ctx, "", "open sesame"))
		loggedIn, err = p.IsLoggedIn(ctx)
		require.NoError(t, err)
		assert.True(t, loggedIn)
		require.NoError(t, p.WaitForLogin(ctx))
	})

	t.Run("rejected", func(t *testing.T) {
		p, s := page(t, func(s *snapshot.Surface) {
			s.Document().Find("body").AppendHtml(`<div class="alert alert-danger">Incorrect password</div>`)
		})
		err := p.Login(ctx, "wrong")
		assert.ErrorIs(t, err, ErrLoginRejected)
		assert.ErrorContains(t, err, "Incorrect password")
		assert.Equal(t, "wrong", s.Document().Find("#password").AttrOr("value", ""))
	})

	t.Run("no outcome", func(t *testing.T) {
		p, _ := page(t, nil)
		a := p.Actor
		start := a.Clock.Now()

		err := p.Login(ctx, "open sesame")
		assert.ErrorIs(t, err, settle.ErrReadinessTimeout)
		assert.Equal(t, LoginOutcomeTimeout, a.Clock.Now().Sub(start))
	})
}
