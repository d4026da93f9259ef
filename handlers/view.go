package handlers

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/gearshift/gearshift/internal"
)

// LoginPage is the data behind the login form.
type LoginPage struct {
	Action        string
	ForwardURL    string
	Errors        []string
	UserNameField string
	PasswordField string
	SubmitField   string
	// Providers are OAuth provider names linked from the page.
	Providers []string
}

// DefaultLoginView is a minimal HTML login form.
func DefaultLoginView(p LoginPage) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html><head><title>Login</title></head><body>\n")

		if len(p.Errors) > 0 {
			b.WriteString(`<ul class="errors">`)
			for _, e := range p.Errors {
				b.WriteString("<li>" + templ.EscapeString(e) + "</li>")
			}
			b.WriteString("</ul>\n")
		}

		b.WriteString(`<form method="post" action="` + templ.EscapeString(p.Action) + `">` + "\n")
		if p.ForwardURL != "" {
			b.WriteString(hiddenInput(internal.ForwardURLParam, p.ForwardURL))
		}
		b.WriteString(`<label>User name <input type="text" name="` + templ.EscapeString(p.UserNameField) + `" autocomplete="username"></label>` + "\n")
		b.WriteString(`<label>Password <input type="password" name="` + templ.EscapeString(p.PasswordField) + `" autocomplete="current-password"></label>` + "\n")
		b.WriteString(`<button type="submit" name="` + templ.EscapeString(p.SubmitField) + `" value="Login">Login</button>` + "\n")
		b.WriteString("</form>\n")

		for _, name := range p.Providers {
			href := "/oauth/" + url.PathEscape(name)
			if p.ForwardURL != "" {
				href += "?" + url.Values{internal.ForwardURLParam: {p.ForwardURL}}.Encode()
			}
			b.WriteString(`<a class="oauth" href="` + templ.EscapeString(href) + `">Sign in with ` + templ.EscapeString(name) + "</a>\n")
		}

		b.WriteString("</body></html>\n")
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func hiddenInput(name, value string) string {
	return `<input type="hidden" name="` + templ.EscapeString(name) + `" value="` + templ.EscapeString(value) + `">` + "\n"
}
