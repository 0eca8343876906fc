// Package registry holds the services this node advertises to discovery
// queries.
//
// The table has a fixed number of slots. Entries are inserted first-fit and
// are not deduplicated: the same name may occupy several slots and every
// slot is advertised. The table is rebuilt as a whole whenever the node
// configuration changes (see Replace).
package registry
