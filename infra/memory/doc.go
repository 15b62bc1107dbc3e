// Package memory provides object reuse for the matching hot path. Orders are
// taken from a typed pool on intake and handed back once they have left the
// book, so steady-state matching allocates no Order structs.
package memory
