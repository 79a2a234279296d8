// Package supervisor starts, tracks and stops application processes.
//
// Every child is started in its own session and watched by one goroutine
// that blocks in wait(2). The watcher never touches shared state beyond the
// instance's exited flag: it classifies the wait status and sends a single
// Exited or Crashed event to the ProcessSink, waiting while its queue is
// full. Registry removal happens when the loop calls Reap, or immediately on
// Stop and Kill. Removal is idempotent and checks the instance generation,
// so racing terminations remove an instance once and a stale event never
// removes a newer instance that reused the pid.
//
// Exit classification:
//   - Exited: normal exit with any code, or death by SIGTERM, SIGINT,
//     SIGHUP or SIGPIPE
//   - Crashed: core dump, SIGKILL, fault signals and any other signal
package supervisor
