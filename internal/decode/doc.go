// Package decode turns cached files into in-memory values. Decoders are kept
// in a registry keyed by format tag ("csv", "json", "excel", "rdf", "xml");
// new formats are added with Register without touching the ensure pipeline.
//
// Options are passed through verbatim as a map and decoded with mapstructure,
// so a misspelled or mistyped option is reported as a *DecodeError rather than
// silently ignored.
package decode
