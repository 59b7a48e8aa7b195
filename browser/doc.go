// Copyright (c) WebBridge Authors.
// Licensed under the MIT License.

/*
Package browser wraps a real browser engine behind the Driver capability
interface that the auth and bridge layers are written against.

The only concrete implementation is ChromeDPDriver, which drives Chrome
through the DevTools protocol via chromedp. Launch flags and user-agent
rotation are tuned so the automated session looks like an ordinary desktop
browser; sites that gate on automation heuristics otherwise refuse login.

Every Driver call takes a context and is additionally bounded by the
configured timeout. Popup handling (WaitPopup) returns a second Driver
bound to the new page, which must be closed independently of the root
driver.
*/
package browser
