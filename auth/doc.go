// Copyright (c) WebBridge Authors.
// Licensed under the MIT License.

/*
Package auth handles sign-in for the browser-driven chat services and the
persistence of the resulting session state.

GoogleAuthenticator walks the two-step Google login (email, then password)
with human-paced typing, matching the Next/Continue buttons across account
locales. SessionStore persists the captured storage state — cookies plus
per-origin localStorage — as google_auth_<service>.json; Restore replays a
stored state onto a fresh driver so the service recognizes the session
without a new login.
*/
package auth
