// Package campaign implements the campaign lifecycle: creation, the
// schedule/pause/resume/rerun/duplicate state machine, recipient
// resolution, and live analytics.
//
// The legal transitions are:
//
//	draft               -> scheduled | sending   (start)
//	sending | scheduled -> paused                (pause)
//	paused              -> scheduled | sending   (resume)
//	completed | failed  -> draft                 (rerun)
//
// Anything else fails with an InvalidStateError and leaves the row
// unmodified.
package campaign
