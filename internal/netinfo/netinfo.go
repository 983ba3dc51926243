// Package netinfo resolves the advertising_interfaces configuration entries
// ("localhost", "all", an explicit interface name, or a CIDR) into concrete
// network interfaces and addresses, mirroring the original's network_info.cc.
package netinfo

import (
	"net"
	"strings"
)

// ResolveInterfaces expands the configured interface selectors into the set
// of live, multicast-capable interfaces to advertise on. "localhost" selects
// the loopback interface; "all" selects every up interface; anything else is
// matched first as an interface name, then as a CIDR against the interface's
// addresses.
func ResolveInterfaces(selectors []string) ([]net.Interface, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	if len(selectors) == 0 {
		return filterUp(all), nil
	}

	var res []net.Interface
	seen := make(map[string]bool)

	for _, sel := range selectors {
		switch strings.ToLower(sel) {
		case "localhost":
			for _, ifc := range all {
				if ifc.Flags&net.FlagLoopback != 0 && !seen[ifc.Name] {
					res = append(res, ifc)
					seen[ifc.Name] = true
				}
			}
		case "all":
			for _, ifc := range filterUp(all) {
				if !seen[ifc.Name] {
					res = append(res, ifc)
					seen[ifc.Name] = true
				}
			}
		default:
			matched := matchByNameOrCIDR(all, sel)
			for _, ifc := range matched {
				if !seen[ifc.Name] {
					res = append(res, ifc)
					seen[ifc.Name] = true
				}
			}
		}
	}

	return res, nil
}

func filterUp(ifcs []net.Interface) []net.Interface {
	var res []net.Interface
	for _, ifc := range ifcs {
		if ifc.Flags&net.FlagUp != 0 {
			res = append(res, ifc)
		}
	}
	return res
}

func matchByNameOrCIDR(ifcs []net.Interface, sel string) []net.Interface {
	for _, ifc := range ifcs {
		if ifc.Name == sel {
			return []net.Interface{ifc}
		}
	}

	_, cidr, err := net.ParseCIDR(sel)
	if err != nil {
		return nil
	}

	var res []net.Interface
	for _, ifc := range ifcs {
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipn, ok := a.(*net.IPNet)
			if ok && cidr.Contains(ipn.IP) {
				res = append(res, ifc)
				break
			}
		}
	}
	return res
}

// MulticastAddresses returns the multicast-capable unicast addresses to bind
// an advertising sender/receiver socket to, for each resolved interface.
func MulticastAddresses(ifcs []net.Interface) []net.IP {
	var res []net.IP
	for _, ifc := range ifcs {
		if ifc.Flags&net.FlagMulticast == 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipn, ok := a.(*net.IPNet)
			if ok {
				res = append(res, ipn.IP)
			}
		}
	}
	return res
}
