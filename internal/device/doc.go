// Package device models the single shared USB peripheral and its persisted state.
//
// # Key Types
//
//   - State: closed enumeration Unavailable | Connected | Disconnected
//   - Device: an observation; carries an address iff the state is not Unavailable
//   - StateStore: the persisted "last observed state" slot
//   - StateHistoryRepository: append-only log of observed transitions
//
// Device values are built only through Unavailable, Connected and
// Disconnected, so an available device without an address cannot exist:
//
//	dev := device.Connected("Wooting 60HE+ keyboard")
//	addr, ok := dev.Address() // "Wooting 60HE+ keyboard", true
//
//	gone := device.Connected("") // same as device.Unavailable()
//
// The SQLite implementations expect the schema from the migrations package.
package device
