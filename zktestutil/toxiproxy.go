package zktestutil

import (
	"fmt"

	toxiproxy "github.com/Shopify/toxiproxy/v2/client"
)

// FaultInjector drives a toxiproxy proxy sitting in front of a ZooKeeper
// ensemble, letting integration tests cut and restore the network path a
// session manager is using without touching the ensemble itself.
type FaultInjector struct {
	client *toxiproxy.Client
	proxy  *toxiproxy.Proxy
}

// NewFaultInjector registers a proxy named name on the toxiproxy instance at
// toxiproxyAddr, forwarding listen to upstream (the real ZooKeeper ensemble
// address). Point the session under test at listen, not upstream. An
// existing proxy with the same name is not reused: creating it fails and the
// error is returned.
func NewFaultInjector(toxiproxyAddr, name, listen, upstream string) (*FaultInjector, error) {
	client := toxiproxy.NewClient(toxiproxyAddr)

	proxy, err := client.CreateProxy(name, listen, upstream)
	if err != nil {
		return nil, fmt.Errorf("zktestutil: creating toxiproxy proxy %q: %w", name, err)
	}

	return &FaultInjector{client: client, proxy: proxy}, nil
}

// Cut disables the proxy, simulating a total network partition between the
// session and the ensemble (scenario: disconnect without session expiry if
// restored quickly, session expiry if left down past the session timeout).
func (f *FaultInjector) Cut() error {
	return f.proxy.Disable()
}

// Restore re-enables the proxy.
func (f *FaultInjector) Restore() error {
	return f.proxy.Enable()
}

// AddLatency injects latencyMs (+/- jitterMs) of downstream latency, for
// exercising reconnect behavior under a degraded link rather than a hard
// cut.
func (f *FaultInjector) AddLatency(name string, latencyMs, jitterMs int64) error {
	_, err := f.proxy.AddToxic(name, "latency", "downstream", 1.0, toxiproxy.Attributes{
		"latency": latencyMs,
		"jitter":  jitterMs,
	})
	if err != nil {
		return fmt.Errorf("zktestutil: adding latency toxic: %w", err)
	}
	return nil
}

// RemoveToxic removes a previously added toxic by name.
func (f *FaultInjector) RemoveToxic(name string) error {
	return f.proxy.RemoveToxic(name)
}

// Close deletes the proxy from the toxiproxy instance.
func (f *FaultInjector) Close() error {
	return f.proxy.Delete()
}
