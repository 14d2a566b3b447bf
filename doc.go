// Package plugreg provides reusable infrastructure for plugin registries:
// one-to-one key-to-plugin mappings that populate themselves.
//
// A plugin hierarchy is declared once, by binding a Config to the Go
// interface type its plugins implement (the hierarchy root). Every concrete
// plugin is then registered with a single explicit call, usually from the
// wiring code of the package that defines it. The registration engine reads
// the plugin's key off a configured attribute (a method or exported field),
// writes the plugin into the hierarchy's shared registry, and fans the
// registration out to any configured secondary registries.
//
// The registry itself is lazy: the first read access triggers a one-time
// scan of a package scope through a pluggable Loader, importing every module
// it finds so that not-yet-wired plugins get a chance to register. Scan
// results are cached across process restarts through the regcache package,
// and the cache is strictly advisory — a cold or corrupt cache only changes
// the cost of discovery, never its outcome.
//
// Use plugreg when plugins map one-to-one onto Go types and a key plus at
// most a couple of secondary registries is all the metadata you need. When
// a plugin contributes many entries, or entries carry rich metadata that
// must be aggregated across sources, write a purpose-built service instead;
// this package deliberately does not try to be one. Registries with a
// handful of entries and no discovery needs are often better served by a
// plain map and manual wiring.
package plugreg
