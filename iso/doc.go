// Package iso runs functions in isolates. A value graph from one realm is
// serialized into program text that rebuilds it in a cold realm:
//   - Shared references are constructed once and cycles are closed by
//     patches replayed after the program runs.
//   - Callables are carried as source text, as a registered Go body with its
//     captured variables, or as the global name of a native.
//   - Inheritance chains, property descriptors, symbol keys and integrity
//     levels (freeze, seal, preventExtensions) survive the trip.
//   - ArrayBuffers and handles are moved, never re-encoded as text.
//
// Workerize pairs the serializer with a Host. Calls cross the boundary as
// structured clones and are answered in order; a throw inside the isolate
// comes back as a *Fault and a dead isolate fails every pending call with a
// *TransportError.
package iso
