// Package notify fans outbound notifications out to registered listeners.
//
// The compositor loop publishes; listeners (the overlay websocket hub, the
// webhook sink) must not block. Each published notification is stamped with
// a uuid and a timestamp.
package notify
