// Package sd runs the discovery protocol: the responder that answers
// queries for the sd resource from the local registry, and the client round
// that multicasts one query and collects every answer that arrives before
// the round deadline.
//
// # Responder
//
// Incoming datagrams are parsed as CoAP and routed by a Mux. The sd handler
// applies the query filter against the registry and, when it passes,
// answers with the whole registry after a random jitter so that many nodes
// hearing the same multicast query do not answer at once.
//
// # Client round
//
//	client := sd.NewClient(&transport.UDPDialer{}, nil)
//	err := client.Discover(ctx, "ceiling", "rgbw", true,
//	    func(from netip.Addr, name, typ string) {
//	        fmt.Println(name, typ, "at", from)
//	    })
//
// The callback may run zero, one or many times per round.
package sd
