/*
Package types defines the shared data model of the pipeline: the canonical
Repository entity, the per-stage Stats aggregate, and the Event and Request
unions exchanged over the bus.

Events and requests are externally tagged JSON unions: the variant name is the
single top-level key, e.g.

	{"RepositoryFetched": {"id": "...", "nameWithOwner": "owner/name", ...}}

Exactly one variant field is set on a well-formed message; Tag() exposes the
active variant for logging and key derivation.
*/
package types
