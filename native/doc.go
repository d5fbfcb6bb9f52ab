// Package native binds the H2GIS GraalVM shared library and exposes it
// as an h2gis.Runtime.
//
// The library exports plain C entry points; every one of them takes the
// isolate thread pointer produced by graal_create_isolate as its first
// argument. Because the isolate binds to the OS thread that created it,
// a Library must only ever be driven from that thread; the engine
// package guarantees this by invoking the loader and every subsequent
// call on its pinned worker.
//
// Symbol resolution is two-tiered. graal_create_isolate, h2gis_connect,
// h2gis_execute and h2gis_prepare are required: the load fails without
// them. Everything else is optional and degrades to a not_supported
// error at call time, so older library builds still load.
//
// Importing this package installs Load as the engine's default loader.
package native
