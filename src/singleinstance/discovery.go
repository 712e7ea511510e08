package singleinstance

import (
	"bufio"
	"context"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	PortStartEnvVar = "SINGLEINSTANCE_PORT_START"
	PortEndEnvVar   = "SINGLEINSTANCE_PORT_END"

	defaultPortStart = 49500
	defaultPortEnd   = 49550
	minPort          = 1024
	maxPort          = 65535

	defaultProbeTimeout = 300 * time.Millisecond
)

// PortRange is the inclusive loopback range scanned for a resident. The
// resident binds Start; clients probe the whole range.
type PortRange struct {
	Start, End int
}

// Ports reads the range from the environment, clamped to unprivileged
// ports. Unset or unparsable bounds fall back to 49500-49550.
func Ports() PortRange {
	r := PortRange{
		Start: envPort(PortStartEnvVar, defaultPortStart),
		End:   envPort(PortEndEnvVar, defaultPortEnd),
	}
	r.Start = max(r.Start, minPort)
	r.End = min(r.End, maxPort)
	if r.End < r.Start {
		r.Start, r.End = r.End, r.Start
	}
	return r
}

func envPort(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func (r PortRange) addr(port int) string {
	return net.JoinHostPort(residentHost, strconv.Itoa(port))
}

// find returns the first port in r whose listener answers PING.
func (r PortRange) find(ctx context.Context, timeout time.Duration) (int, bool) {
	for port := r.Start; port <= r.End; port++ {
		if ctx.Err() != nil {
			return 0, false
		}
		if ping(r.addr(port), timeout) {
			return port, true
		}
	}
	return 0, false
}

// DetectResidentPort reports the port of a running resident, if any.
func DetectResidentPort(ctx context.Context) (int, bool) {
	return Ports().find(ctx, probeTimeout(ctx, defaultProbeTimeout))
}

// probeTimeout bounds each dial by what is left of ctx.
func probeTimeout(ctx context.Context, def time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < def {
			return d
		}
	}
	return def
}

func ping(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if _, err := conn.Write([]byte(pingRequest)); err != nil {
		return false
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && resp == pongResponse
}
