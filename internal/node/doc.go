// Package node assembles a running meshsd node from its configuration.
//
// A Node owns the local registry and its multicast responder, the watch
// scheduler with its discovery client, the diagnostics server and the
// DNS-SD advertisement. Run starts them all and stops them together;
// Apply swaps in a new configuration without restarting.
package node
