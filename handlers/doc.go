// Package handlers provides ready-made login, logout and OAuth routes.
//
// Login renders the failure page that Context.Fail forwards to. Register it
// under the app's failure URL:
//
//	app := gearshift.New(
//	    gearshift.WithVisits(visits),
//	    gearshift.WithIdentity(resolver, gearshift.WithFailureURL("/login")),
//	    gearshift.WithHandlers(
//	        handlers.NewLogin(handlers.WithOAuthLinks(providers.Names()...)),
//	        handlers.NewOAuth(providers),
//	    ),
//	)
//
// OAuth keeps the authorization state in a signed cookie, so the app needs
// a cookie secret. A provider account signs in only when a user has a
// foreign login for it.
package handlers
