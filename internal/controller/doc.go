// Package controller runs the toggle cycle.
//
// A cycle observes the device, records the observation if it differs from
// the stored state, and in interactive mode flips the attachment once:
//
//	observe -> changed? save + record + notify
//	        -> background or unavailable? done
//	        -> USE / STOP USING, progress toast, settle delay
//	        -> observe again (background), done
//
// A cycle therefore issues at most one toggle command, and two background
// cycles against an unchanged device produce no commands and no
// notifications. Watch serialises cycles from a timer and from external
// triggers so they never overlap.
package controller
