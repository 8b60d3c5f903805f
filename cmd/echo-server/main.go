// A UDP echo server for exercising latgraph without a real Echo service.
// Replies are delayed by a normally distributed simulated latency and a
// configurable fraction of datagrams is dropped outright.
package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"os"
	"time"

	flag "github.com/spf13/pflag"
)

type simConfig struct {
	avgLat     time.Duration
	jitter     time.Duration
	minLat     time.Duration
	maxLat     time.Duration
	lossChance float64
}

// nextLatency draws a reply delay from a normal distribution clamped to the
// configured bounds.
func (c simConfig) nextLatency(rng *rand.Rand) time.Duration {
	lat := time.Duration(rng.NormFloat64()*float64(c.jitter)) + c.avgLat
	if lat < c.minLat {
		lat = c.minLat
	}
	if lat > c.maxLat {
		lat = c.maxLat
	}
	return lat
}

func main() {
	var bindAddr string
	var port uint16
	var lossChance float64
	var avgLat, jitter, minLat, maxLat time.Duration

	flag.StringVarP(&bindAddr, "bind-address", "b", "127.0.0.1", "Address to listen on")
	flag.Uint16VarP(&port, "port", "p", 4207, "Port to listen on")
	flag.DurationVarP(&avgLat, "avg-latency", "a", 20*time.Millisecond, "Average simulated latency")
	flag.DurationVarP(&jitter, "jitter", "j", 3*time.Millisecond, "Latency standard deviation")
	flag.DurationVarP(&minLat, "min-latency", "m", time.Millisecond, "Lower latency clamp")
	flag.DurationVarP(&maxLat, "max-latency", "M", 100*time.Millisecond, "Upper latency clamp")
	flag.Float64VarP(&lossChance, "loss-chance", "l", 0.1, "Fraction of datagrams to drop (0..1)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if lossChance < 0 {
		lossChance = 0
	}
	if lossChance > 1 {
		lossChance = 1
	}
	cfg := simConfig{
		avgLat:     avgLat,
		jitter:     jitter,
		minLat:     minLat,
		maxLat:     maxLat,
		lossChance: lossChance,
	}

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", bindAddr, port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: couldn't resolve bind address: %v\n", err)
		os.Exit(1)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: couldn't bind socket: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	slog.Info("Listening", "addr", conn.LocalAddr().String(),
		"avg_latency", avgLat, "jitter", jitter, "loss_chance", lossChance)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	buf := make([]byte, 2048)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			slog.Warn("Network error", "error", err)
			continue
		}
		if rng.Float64() < cfg.lossChance {
			slog.Debug("Dropping datagram", "bytes", n, "from", remote.String())
			continue
		}

		wait := cfg.nextLatency(rng)
		slog.Debug("Echoing datagram", "bytes", n, "from", remote.String(), "delay", wait)
		reply := make([]byte, n)
		copy(reply, buf[:n])
		go func(reply []byte, remote *net.UDPAddr, wait time.Duration) {
			time.Sleep(wait)
			if _, err := conn.WriteToUDP(reply, remote); err != nil {
				slog.Warn("Couldn't send echo reply", "error", err)
			}
		}(reply, remote, wait)
	}
}
