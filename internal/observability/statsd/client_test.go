package statsd

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestMetricName(t *testing.T) {
	t.Parallel()

	c := &Client{prefix: "bellsbank"}
	tests := map[string]string{
		" session/refresh ": "bellsbank.session_refresh",
		"auth..operation":   "bellsbank.auth.operation",
		"..":                "",
	}
	for input, want := range tests {
		if got := c.metricName(input); got != want {
			t.Fatalf("metricName(%q) = %q, want %q", input, got, want)
		}
	}

	if got := (&Client{}).metricName("profile.load"); got != "profile.load" {
		t.Fatalf("unprefixed metricName = %q", got)
	}
}

func TestFormatTags(t *testing.T) {
	t.Parallel()

	global := map[string]string{"env": "prod", " service ": " bellsbank "}
	local := map[string]string{"result": " success ", "": "ignored", "env": "stage"}

	got := formatTags(global, local)
	want := "|#env:stage,result:success,service:bellsbank"
	if got != want {
		t.Fatalf("formatTags mismatch\n got: %q\nwant: %q", got, want)
	}
	if got := formatTags(nil, nil); got != "" {
		t.Fatalf("formatTags(nil, nil) = %q, want empty string", got)
	}
}

func newTestClient(t *testing.T) (*Client, net.PacketConn) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = pc.Close() })

	client, err := NewClient(Config{
		Enabled:       true,
		Address:       pc.LocalAddr().String(),
		Prefix:        "bellsbank.",
		FlushInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, pc
}

func readPacket(t *testing.T, pc net.PacketConn) string {
	t.Helper()
	buf := make([]byte, 2*maxPacketSize)
	if err := pc.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(buf[:n])
}

func TestClientBatchesUntilFlush(t *testing.T) {
	t.Parallel()
	client, pc := newTestClient(t)

	if !client.Enabled() {
		t.Fatal("expected client to be enabled")
	}

	client.Count("session.refresh", 1, map[string]string{"result": "success"})
	client.Timing("session.refresh.duration", 1500*time.Microsecond, nil)
	client.Gauge("session.active", 1, nil)
	client.Flush()

	want := strings.Join([]string{
		"bellsbank.session.refresh:1|c|#result:success",
		"bellsbank.session.refresh.duration:1.5|ms",
		"bellsbank.session.active:1|g",
	}, "\n")
	if got := readPacket(t, pc); got != want {
		t.Fatalf("packet = %q, want %q", got, want)
	}
}

func TestClientSplitsAtPacketSize(t *testing.T) {
	t.Parallel()
	client, pc := newTestClient(t)

	tag := map[string]string{"pad": strings.Repeat("x", 200)}
	for range 10 {
		client.Count("auth.operation", 1, tag)
	}
	client.Flush()

	total := 0
	for total < 10 {
		packet := readPacket(t, pc)
		if len(packet) > maxPacketSize {
			t.Fatalf("packet of %d bytes exceeds %d", len(packet), maxPacketSize)
		}
		total += strings.Count(packet, "\n") + 1
	}
	if total != 10 {
		t.Fatalf("received %d lines, want 10", total)
	}
}

func TestClientCloseFlushesAndDisables(t *testing.T) {
	t.Parallel()
	client, pc := newTestClient(t)

	client.Count("profile.load", 1, nil)
	if err := client.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if got := readPacket(t, pc); got != "bellsbank.profile.load:1|c" {
		t.Fatalf("packet = %q", got)
	}
	if client.Enabled() {
		t.Fatal("expected client.Enabled to report false after Close")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close (second call) error: %v", err)
	}
	client.Count("ignored", 1, nil)
}

func TestDisabledAndNilClients(t *testing.T) {
	t.Parallel()

	disabled, err := NewClient(Config{Address: "127.0.0.1:8125"})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	disabled.Count("ignored", 1, nil)
	disabled.Flush()
	if disabled.Enabled() {
		t.Fatal("disabled config should not dial")
	}
	if err := disabled.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	var nilClient *Client
	nilClient.Count("ignored", 1, nil)
	nilClient.Flush()
	if nilClient.Enabled() {
		t.Fatal("nil client should report disabled")
	}
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	if err == nil {
		t.Fatal("expected NewClient to error for invalid address")
	}
	if !strings.Contains(err.Error(), "statsd dial") {
		t.Fatalf("unexpected error: %v", err)
	}
}

type countingSink struct{ counts, gauges, timings int }

func (c *countingSink) Count(string, int64, map[string]string)           { c.counts++ }
func (c *countingSink) Gauge(string, float64, map[string]string)         { c.gauges++ }
func (c *countingSink) Timing(string, time.Duration, map[string]string) { c.timings++ }

func TestFanoutSkipsNilSinks(t *testing.T) {
	t.Parallel()

	a, b := &countingSink{}, &countingSink{}
	f := Fanout{a, nil, b}

	f.Count("x", 1, nil)
	f.Gauge("y", 1, nil)
	f.Timing("z", time.Second, nil)

	for _, s := range []*countingSink{a, b} {
		if s.counts != 1 || s.gauges != 1 || s.timings != 1 {
			t.Fatalf("unexpected sink calls: %+v", *s)
		}
	}
}
