package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"time"
)

func main() {
	addr := flag.String("addr", "localhost:5023", "device server address")
	dev := flag.String("device", "fake-01", "device id")
	interval := flag.Duration("interval", time.Second, "send interval")
	flag.Parse()

	c, err := net.Dial("tcp", *addr)
	if err != nil {
		panic(err)
	}
	defer c.Close()

	lat := 12.9716
	lon := 77.5946
	for {
		lat += (rand.Float64() - 0.5) / 1000
		lon += (rand.Float64() - 0.5) / 1000
		msg := map[string]interface{}{
			"deviceId":  *dev,
			"latitude":  lat,
			"longitude": lon,
			"timestamp": time.Now().Format(time.RFC3339),
		}
		d, _ := json.Marshal(msg)
		_, err = fmt.Fprintf(c, "%s\n", d)
		if err != nil {
			panic(err)
		}
		time.Sleep(*interval)
	}
}
