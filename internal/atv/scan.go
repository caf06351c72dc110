package atv

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// serviceProtocols maps mDNS service types to the protocol they advertise.
var serviceProtocols = map[string]Protocol{
	"_airplay._tcp":        ProtocolAirPlay,
	"_companion-link._tcp": ProtocolCompanion,
	"_mediaremotetv._tcp":  ProtocolMRP,
	"_touch-able._tcp":     ProtocolDMAP,
	"_raop._tcp":           ProtocolRAOP,
}

// MDNSScanner discovers devices via multicast DNS service queries.
// One query per service type, results merged by address.
type MDNSScanner struct {
	timeout time.Duration
}

// NewMDNSScanner creates a scanner with the given per-sweep timeout.
func NewMDNSScanner(timeout time.Duration) *MDNSScanner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MDNSScanner{timeout: timeout}
}

// Scan queries every known service type and merges the results into one
// device per address. The device ID comes from the deviceid TXT record
// when present, otherwise from the address and name.
func (s *MDNSScanner) Scan(ctx context.Context) ([]DiscoveredDevice, error) {
	byAddress := make(map[string]*DiscoveredDevice)

	for service, protocol := range serviceProtocols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := s.queryService(service)
		if err != nil {
			return nil, fmt.Errorf("querying %s: %w", service, err)
		}
		for _, entry := range entries {
			mergeEntry(byAddress, entry, protocol)
		}
	}

	devices := make([]DiscoveredDevice, 0, len(byAddress))
	for _, d := range byAddress {
		sort.Slice(d.Protocols, func(i, j int) bool {
			return d.Protocols[i] < d.Protocols[j]
		})
		devices = append(devices, *d)
	}

	// Stable ordering for the API surface
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].ID < devices[j].ID
	})

	return devices, nil
}

// Probe checks a single address for advertised protocols. A full sweep is
// run and filtered; mDNS has no per-host query.
func (s *MDNSScanner) Probe(ctx context.Context, address string) ([]Protocol, error) {
	devices, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Address == address {
			return d.Protocols, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnreachable, address)
}

// queryService runs one mDNS query and collects all responses.
func (s *MDNSScanner) queryService(service string) ([]*mdns.ServiceEntry, error) {
	entriesCh := make(chan *mdns.ServiceEntry, 16)
	done := make(chan []*mdns.ServiceEntry, 1)

	go func() {
		var collected []*mdns.ServiceEntry
		for entry := range entriesCh {
			collected = append(collected, entry)
		}
		done <- collected
	}()

	err := mdns.Query(&mdns.QueryParam{
		Service:     service,
		Domain:      "local",
		Timeout:     s.timeout,
		Entries:     entriesCh,
		DisableIPv6: true,
	})
	close(entriesCh)
	entries := <-done

	if err != nil {
		return nil, err
	}
	return entries, nil
}

// mergeEntry folds one service response into the per-address device map.
func mergeEntry(byAddress map[string]*DiscoveredDevice, entry *mdns.ServiceEntry, protocol Protocol) {
	if entry.AddrV4 == nil {
		return
	}
	address := entry.AddrV4.String()
	name := deviceName(entry.Name)

	d, ok := byAddress[address]
	if !ok {
		d = &DiscoveredDevice{
			Name:    name,
			Address: address,
		}
		byAddress[address] = d
	}

	// Prefer a real name over a RAOP-mangled one
	if d.Name == "" || (strings.Contains(d.Name, "@") && !strings.Contains(name, "@")) {
		d.Name = name
	}

	if id := txtDeviceID(entry.InfoFields); id != "" {
		d.ID = id
	}
	if d.ID == "" {
		d.ID = FallbackID(address, d.Name)
	}

	if !d.HasProtocol(protocol) {
		d.Protocols = append(d.Protocols, protocol)
	}
}

// deviceName extracts the human-readable name from a service instance name
// like "Living Room._airplay._tcp.local." RAOP instances carry the MAC
// before an @ sign; the caller strips that when a better name exists.
func deviceName(instance string) string {
	name := instance
	if idx := strings.Index(name, "._"); idx > 0 {
		name = name[:idx]
	}
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[at+1:]
	}
	return strings.ReplaceAll(name, "\\ ", " ")
}

// txtDeviceID extracts the deviceid TXT record, the device's stable
// protocol-layer identity.
func txtDeviceID(fields []string) string {
	for _, f := range fields {
		if v, ok := strings.CutPrefix(f, "deviceid="); ok {
			return strings.ToLower(v)
		}
	}
	return ""
}
