// Package transport provides the datagram endpoints used by discovery: a
// multicast listener for the responder and short-lived client endpoints for
// discovery rounds.
//
// Both are expressed through PacketConn, the subset of net.PacketConn that
// discovery needs, so tests can substitute the in-memory implementation in
// package transporttest.
package transport
