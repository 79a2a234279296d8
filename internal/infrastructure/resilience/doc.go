/*
Package resilience provides a circuit breaker for outbound calls.

The webhook sink runs every delivery through a Breaker so a dead endpoint
costs one refused call per notification instead of a timeout and retries.

	Closed --[Failures in a row]--> Open --[Cooldown]--> Half-Open
	Half-Open --[Probes succeed]--> Closed
	Half-Open --[any failure]-----> Open
*/
package resilience
