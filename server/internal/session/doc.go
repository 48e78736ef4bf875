// Package session holds calculator sessions in memory. Each session owns a
// feed.Feed (the four most recent results plus the selected tab) and is
// evicted once it has been idle for longer than the configured TTL.
//
// All access to a session's feed goes through the Store, which serialises it
// under a single mutex: a calculation is computed and pushed before the next
// request on the same session is looked at.
package session
