// Package roster reads the pharmacy duty roster published as a legacy,
// windows-1252 encoded HTML page and turns it into a ScheduleSnapshot.
//
// The read path is fetch, decode, extract. Each step returns an error wrapping
// ErrFetch, ErrDecode or ErrParse; Service.Snapshot is the only place where a
// failure collapses into an empty snapshot.
package roster
