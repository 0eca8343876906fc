// Package discovery announces meshsd nodes over DNS-SD and finds them.
//
// Service discovery proper runs over CoAP multicast (package sd). That
// protocol only works where IPv6 multicast reaches, so nodes additionally
// register a "_coap._udp" DNS-SD service on the LAN. Ordinary mDNS tools
// (avahi-browse, dns-sd) and the scan command use it to list nodes together
// with the services they answer for.
//
// # TXT Records
//
// A node publishes:
//   - txtvers=1
//   - version=<build version>
//   - svc=<name>/<type>, once per registry entry
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Nodes must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
