// Package resultbuf decodes the columnar binary buffers the H2GIS
// native library returns from fetch calls.
//
// # Wire Layout
//
// One buffer carries zero or more rows of a fixed column set:
//
//	[int32 columnCount][int32 rowCount]
//	[int64 columnOffset] × columnCount     offsets from buffer start
//
//	per column, at its offset:
//	[int32 nameLen][name bytes][int32 typeTag][int32 totalDataLen]
//	then the column's values back to back, one per row:
//
//	Tag       Encoding
//	──────────────────────────────────────────────
//	int       int32, fixed width
//	long      int64, fixed width
//	float     float32, fixed width
//	double    float64, fixed width
//	bool      1 byte
//	string    [int32 len][len bytes]
//	date      [int32 len][len bytes]
//	geometry  [int32 len][len bytes, WKB or EWKB]
//
// All integers are little-endian. Unknown tags are skipped by their
// declared totalDataLen and decode to null values. A row count of zero
// means "no data" and consumes no column payload.
//
// # Geometry
//
// Geometry blobs may arrive as EWKB: bit 0x20000000 set in the WKB type
// word and a 4-byte SRID following it. The decoder strips the SRID,
// clears the flag in the blob's own byte order and hands back standard
// WKB; Value.WKB also reports the stripped SRID. Value.Geometry parses
// the normalized blob with paulmach/orb.
//
// # Statelessness
//
// Decoding is stateless across buffers. The caller owns batch paging:
// request the next buffer when Next returns nil, stop when the runtime
// hands back an empty buffer. Decoded buffers alias the runtime-owned
// bytes and become invalid once the underlying buffer is freed.
package resultbuf
