// Package protocol implements the wire format of mesh service discovery.
//
// Discovery runs over CoAP on the "sd" resource. Both requests and replies
// are Non-confirmable; confirmable traffic on this path is never served.
//
// # Request
//
// A GET sd request optionally carries a CBOR map (Content-Format 60) with
// the keys "name" and "type", each a text string of at most 7 bytes:
//
//	{"name": "lamp"}                  only services named lamp
//	{"name": "lamp", "type": "rgbw"}  a specific (name, type) pair
//	(no payload)                      every service
//
// # Reply
//
// A 2.05 Content reply lists every service the responder offers, not only
// the ones matching the filter:
//
//	{"lamp": {"type": "rgbw"}, "fan": {"type": "hvac"}}
//
// Malformed entries inside an otherwise valid reply are skipped.
//
// # Destinations
//
// Queries go to one of two multicast groups on port 5683, chosen by the mesh
// scope flag: ff05::1 (site-local all-nodes) or ff03::1 (realm-local
// all-nodes, the mesh).
//
// # Thread Safety
//
// Encoding and parsing functions are stateless. IDSource is safe for
// concurrent use.
package protocol
