package airhub

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_cyberos-air._tcp"

// Advertise announces the hub on the local network until the returned
// server is shut down.
func Advertise(port int) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		host = "cyberos-air"
	}
	service, err := mdns.NewMDNSService(host, ServiceType, "", "", port, nil, []string{"cyberos air hub"})
	if err != nil {
		return nil, fmt.Errorf("mdns service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("mdns server: %w", err)
	}
	slog.Info("Advertising air hub", "service", ServiceType, "port", port)
	return server, nil
}

// Discover returns the websocket URL of the first air hub found.
func Discover(timeout time.Duration) (string, error) {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	entriesCh := make(chan *mdns.ServiceEntry, 4)

	go func() {
		defer close(entriesCh)
		params := mdns.DefaultParams(ServiceType)
		params.Entries = entriesCh
		params.Timeout = timeout
		params.DisableIPv6 = true
		mdns.Query(params)
	}()

	select {
	case entry := <-entriesCh:
		if entry == nil {
			return "", fmt.Errorf("no %s service found", ServiceType)
		}

		var address string
		if entry.AddrV4 != nil {
			address = entry.AddrV4.String()
		} else if entry.AddrV6 != nil {
			address = fmt.Sprintf("[%s]", entry.AddrV6.String())
		} else {
			return "", fmt.Errorf("no valid address found for service")
		}

		url := fmt.Sprintf("ws://%s:%d/", address, entry.Port)
		slog.Info("Discovered air hub", "service_name", entry.Name, "url", url)
		return url, nil

	case <-time.After(timeout):
		return "", fmt.Errorf("mDNS discovery timeout for %s", ServiceType)
	}
}
