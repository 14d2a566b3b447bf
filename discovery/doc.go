// Package discovery is the default package-scan collaborator for plugreg
// registries: it treats a directory tree of HCL plugin manifests as the
// package scope to scan.
//
// A manifest declares one or more plugin blocks, each naming the compiled
// Go register function (a binding) that constructs the plugin and registers
// it with its hierarchy:
//
//	plugin "imagexpress" {
//	  register = "RegisterImageXpressHandler"
//	  metadata = { vendor = "molecular-devices" }
//	}
//
// Enumerating a package lists the manifest files under the corresponding
// directory; importing a module parses its manifest and invokes the named
// bindings, which is what makes not-yet-wired plugins show up in a lazily
// materialized registry. Imports are idempotent, matching how a language
// module system executes each module once.
package discovery
