// Package window routes window-system callbacks to the compositor loop.
//
// The router resolves the owning instance of each new window, applies the
// geometry policy for its role, remembers which pid owns each handle and
// re-emits all four callback kinds as loop events. It never touches views.
// Events for handles it has not seen added are dropped, so the loop can
// never observe Removed before Added.
package window
