// Package virtualhere talks to the local VirtualHere USB client through its
// IPC command line (`<binary> -t <command>`).
//
// A complete LIST response starts with "VirtualHere Client IPC" and ends
// with "VirtualHere Client is running as a service". Anything else (the
// client still starting, a truncated pipe, an error message) is treated as
// not-yet-ready and polled again, up to the configured retry bound.
//
// Within a complete listing the first line mentioning the device name is
// used. Its first parenthesised token is the address passed back to
// USE/STOP USING, and the marker "In-use by you" means this host holds it:
//
//	1.2.3.4 (Wooting 60HE+ keyboard) In-use by you
//	        ^^^^^^^^^^^^^^^^^^^^^^^^ address       -> Connected
package virtualhere
