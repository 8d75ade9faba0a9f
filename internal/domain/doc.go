// Package domain defines the core domain types shared by the relay.
//
// Telemetry samples flow from the ingest boundary to viewers; commands flow from viewers to the radio link.
// No implementation code - just values, sentinel errors and the narrow contracts other packages depend on.
package domain
