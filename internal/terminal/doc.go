// Package terminal exposes the terminals termsend can deliver text to.
//
// Two providers exist:
//
//   - Tmux lists tmux panes and types into them with send-keys.
//   - Shells finds shells started by `termsend shell`. Each such shell runs
//     under a PTY and listens on a unix socket in the runtime directory.
//
// A Set aggregates providers and answers "all terminals" and "focused
// terminal". A Watcher turns terminals disappearing into a stream of closed
// handles.
//
// # Shell protocol
//
// Clients send newline-delimited JSON requests to <id>.sock:
//
//	{"op":"send","text":"print(1)","execute":true}
//	{"op":"show"}
//
// and read one {"ok":true} or {"ok":false,"error":"..."} reply per request.
// Metadata for each shell is kept next to the socket in <id>.json.
package terminal
