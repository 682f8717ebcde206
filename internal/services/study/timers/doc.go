// Package timers runs the background clocks of the study service: the 1 Hz
// budget charge, the 30 s limit and forced-rest check, the 60 s staleness
// sweep, and the auto-resume timers that end forced breaks.
package timers
