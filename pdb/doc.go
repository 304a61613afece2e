// Package pdb reads and writes Palm Database (PDB) containers.
//
// A PDB file is a 78-byte big-endian header, a table of 8-byte record
// entries and the record blobs laid out back to back. Record i spans from its
// table offset to the next record's offset; the last record runs to the end
// of the file.
//
// Offsets are never stored on a Record. Encode derives them from the record
// order, so records can be appended or replaced freely before encoding.
//
// Timestamps are seconds since PalmEpoch (1904-01-01T00:00:00Z) and are
// always written and read that way.
package pdb
