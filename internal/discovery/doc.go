// Package discovery locates the command server on the local network with
// mDNS.
//
// The server advertises itself as an "_http._tcp" service. When no base URL
// is configured the agent browses for that service type and picks the
// entry whose instance name matches server.mdns_instance. The first IPv4
// address of the entry is preferred; IPv6 is used only when no IPv4 address
// was announced.
//
//	scanner := discovery.NewScanner()
//	server, err := scanner.Find(ctx, "mejalight")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(server.BaseURL()) // http://192.168.1.10:3000
//
// Discovery requires multicast on the interface and UDP port 5353 open.
package discovery
