package network

import (
	"fmt"
	"net"
	"time"

	"github.com/jackpal/gateway"
	natpmp "github.com/jackpal/go-nat-pmp"
)

// natMappingLifetime is how long a NAT-PMP port mapping is requested for
// rather than relying on a router's default lease. DiscoverExternalAddress
// requests the mapping once and does not renew it.
const natMappingLifetime = 2 * time.Hour

// DiscoverExternalAddress finds the local gateway via jackpal/gateway and
// asks it, via NAT-PMP, to map internalPort to an external port and report
// this node's public IP -- used when a deployment hasn't set a fixed
// PUBLIC_IP (boot.Config.PublicIP) and needs to learn one at startup.
func DiscoverExternalAddress(internalPort int) (net.IP, int, error) {
	gatewayIP, err := gateway.DiscoverGateway()
	if err != nil {
		return nil, 0, fmt.Errorf("discovering default gateway: %w", err)
	}

	client := natpmp.NewClient(gatewayIP)
	external, err := client.GetExternalAddress()
	if err != nil {
		return nil, 0, fmt.Errorf("querying external address via nat-pmp: %w", err)
	}

	mapping, err := client.AddPortMapping("tcp", internalPort, internalPort, int(natMappingLifetime.Seconds()))
	if err != nil {
		return nil, 0, fmt.Errorf("mapping port %d via nat-pmp: %w", internalPort, err)
	}

	ip := net.IPv4(external.ExternalIPAddress[0], external.ExternalIPAddress[1], external.ExternalIPAddress[2], external.ExternalIPAddress[3])
	return ip, int(mapping.MappedExternalPort), nil
}
