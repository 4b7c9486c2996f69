// Command garmctl is garm's demo CLI client: it sends book events over the
// wire to a running garmd, and can print a market's current top-of-book
// snapshot and liquidity curve. It plays the same role the teacher's
// cmd/client/client.go plays for fenrir — a thin flag-driven harness around
// the wire protocol — but also takes over the original Rust program's
// console debug-printing (print_info/print_book), which in garm's
// client/server split belongs here rather than in the engine.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"garm/internal/book"
	"garm/internal/transport"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:7070", "address of the garmd server")
	exchange := flag.String("exchange", "default", "market exchange identity")
	instrument := flag.String("instrument", "BTC-USD", "market instrument identity")
	action := flag.String("action", "open", "action: open, change, done, received, snapshot")
	side := flag.String("side", "buy", "order side: buy or sell")
	price := flag.Float64("price", 100.0, "limit price (open/received)")
	size := flag.Float64("size", 1.0, "order size (open/received/change)")
	orderID := flag.String("id", "", "order id (required for change/done; optional for open)")
	sequence := flag.Uint64("sequence", 0, "event sequence number")

	flag.Parse()

	market := book.Market{Exchange: *exchange, Instrument: *instrument}

	if strings.ToLower(*action) == "snapshot" {
		if err := runSnapshot(*serverAddr, market); err != nil {
			fmt.Fprintln(os.Stderr, "garmctl:", err)
			os.Exit(1)
		}
		return
	}

	msg, err := buildMessage(market, *action, *side, *price, *size, *orderID, *sequence)
	if err != nil {
		fmt.Fprintln(os.Stderr, "garmctl:", err)
		flag.Usage()
		os.Exit(1)
	}

	data, err := transport.Encode(msg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "garmctl: encode:", err)
		os.Exit(1)
	}

	conn, err := net.DialTimeout("tcp", *serverAddr, 2*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, "garmctl: dial:", err)
		os.Exit(1)
	}
	defer conn.Close()

	if _, err := conn.Write(data); err != nil {
		fmt.Fprintln(os.Stderr, "garmctl: write:", err)
		os.Exit(1)
	}

	status := make([]byte, 1)
	if _, err := conn.Read(status); err != nil {
		fmt.Fprintln(os.Stderr, "garmctl: no acknowledgement:", err)
		os.Exit(1)
	}
	if status[0] != 0 {
		fmt.Fprintln(os.Stderr, "garmctl: server rejected event")
		os.Exit(1)
	}
	fmt.Printf("-> %s %s sequence=%d acknowledged\n", strings.ToUpper(*action), market, *sequence)
}

func buildMessage(market book.Market, action, sideStr string, price, size float64, orderID string, sequence uint64) (transport.Message, error) {
	s := book.Buy
	if strings.ToLower(sideStr) == "sell" {
		s = book.Sell
	}

	switch strings.ToLower(action) {
	case "open", "received":
		p, err := book.NewPrice(price)
		if err != nil {
			return transport.Message{}, err
		}
		order := book.Order{Side: s, Type: book.Limit, AtomicOrder: book.AtomicOrder{ID: orderID, Price: p, Size: size}}
		var event book.Event
		if strings.ToLower(action) == "open" {
			event = book.OpenEvent(order, sequence)
		} else {
			event = book.ReceivedEvent(order, sequence)
		}
		return transport.Message{Market: market, Event: event}, nil

	case "change":
		if orderID == "" {
			return transport.Message{}, fmt.Errorf("-id is required for change")
		}
		return transport.Message{Market: market, Event: book.ChangeEvent(orderID, size, sequence)}, nil

	case "done":
		if orderID == "" {
			return transport.Message{}, fmt.Errorf("-id is required for done")
		}
		return transport.Message{Market: market, Event: book.DoneEvent(orderID, sequence)}, nil

	default:
		return transport.Message{}, fmt.Errorf("unknown action %q", action)
	}
}

// runSnapshot dials the server, sends a snapshot request for market, and
// prints the decoded reply. This is the "-action snapshot" path: unlike
// open/change/done/received, it blocks for a response payload rather than a
// one-byte ack.
func runSnapshot(serverAddr string, market book.Market) error {
	data, err := transport.EncodeSnapshotRequest(market)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	conn, err := net.DialTimeout("tcp", serverAddr, 2*time.Second)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("no response: %w", err)
	}
	if n == 1 && buf[0] == 1 {
		return fmt.Errorf("server rejected snapshot request")
	}

	snap, err := transport.DecodeSnapshot(buf[:n])
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	snap.Market = market

	printSnapshot(os.Stdout, snap)
	return nil
}

// printSnapshot writes a human-readable top-of-book and liquidity summary,
// the garmctl equivalent of the original implementation's print_info/
// print_book debug output, reachable over the wire via "-action snapshot".
func printSnapshot(w *os.File, snap transport.Snapshot) {
	fmt.Fprintf(w, "market=%s bid=%.2f ask=%.2f\n", snap.Market, snap.BestBid, snap.BestAsk)
	for _, lvl := range snap.BidLevels {
		fmt.Fprintf(w, "  bid %.2f x %.4f (cum notional %.2f)\n", lvl.Price, lvl.Size, lvl.CumulativeNotional)
	}
	for _, lvl := range snap.AskLevels {
		fmt.Fprintf(w, "  ask %.2f x %.4f (cum notional %.2f)\n", lvl.Price, lvl.Size, lvl.CumulativeNotional)
	}
}
