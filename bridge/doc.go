// Copyright (c) WebBridge Authors.
// Licensed under the MIT License.

/*
Package bridge drives the browser-only chat services behind an API-shaped
completion surface.

# Sessions

Each provider gets one Session owning one browser page. A session moves
through uninitialized -> initializing -> authenticating -> ready, then
alternates ready <-> busy as requests hold it; any mid-turn failure poisons
it to error, from which only re-initialization recovers. Exclusivity is a
weighted semaphore of capacity one: concurrent requests for the same
provider queue instead of failing.

# Conversation reuse

Incoming histories are matched against the conversation cache. A hit reopens
the recorded chat URL and only the newest user message is sent. A miss opens
a fresh chat, stores it under the full history's fingerprint, and replays
the history's earlier user turns — never assistant turns — so the service
rebuilds the context itself.

# Streaming

The reply streams out of the page by polling: the Extractor reads the
newest response container and emits each new suffix as a chunk. The stream
ends on the page's completion marker, or after five seconds of unchanged
output when the marker never shows, in which case the terminal chunk is
flagged unconfirmed.
*/
package bridge
