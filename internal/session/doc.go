// Package session keeps a history of playback sessions.
//
// Every time a context's executor starts playing, the Recorder writes a
// Record with status running. When the session ends the record is
// finished as completed (the range played out) or stopped.
//
// Architecture:
//
//	execution.Manager ──OnSessionStarted/Ended──▶ Recorder (queue)
//	                                                  │ own goroutine
//	                                                  ▼
//	                                        Repository (SQLite)
//	                                        playback_sessions table
//
// The Recorder never blocks the caller: events are queued and written by
// Run. When the queue is full the event is dropped and logged.
package session
