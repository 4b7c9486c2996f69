// Package transport is garm's demo event-delivery shim: a TCP server that
// decodes a fixed-header binary wire format for book.Event and dispatches
// each event to the correct market's OrderBook, serialized per market. It
// plays the role spec.md §1 calls an "external collaborator" — the engine
// itself never imports this package.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"garm/internal/book"
)

// Wire header layout, modeled on the teacher's NewOrderMessage/Report
// fixed-header + variable-tail encoding (internal/net/messages.go in the
// teacher tree):
//
//	byte 0:       Kind        (0=Received 1=Open 2=Change 3=Done)
//	bytes 1-8:    Sequence    (uint64 BigEndian)
//	byte 9:       ExchangeLen
//	byte 10:      InstrumentLen
//	bytes 11..:   Exchange, Instrument (ExchangeLen + InstrumentLen bytes)
//	then, by Kind:
//	  Received/Open: Side(1) Price(8) Size(8) OrderIDLen(1) OrderID(n)
//	  Change:        OrderIDLen(1) OrderID(n) NewSize(8)
//	  Done:          OrderIDLen(1) OrderID(n)
const (
	headerLen = 1 + 8 + 1 + 1
)

var (
	ErrMessageTooShort = errors.New("transport: message too short")
	ErrInvalidKind     = errors.New("transport: invalid event kind")
)

// Message wraps a decoded book.Event with the market it targets.
type Message struct {
	Market book.Market
	Event  book.Event
}

// snapshotKind is a Kind-byte value outside book.EventKind's range, marking a
// read-only snapshot request/response instead of a book event. The rest of
// the request reuses the event header layout (Sequence is unused and left
// zero) so the two message families share one framing.
const snapshotKind = 0xFF

// IsSnapshotRequest reports whether data is a snapshot request rather than
// an encoded book event, by checking the Kind byte.
func IsSnapshotRequest(data []byte) bool {
	return len(data) > 0 && data[0] == snapshotKind
}

// EncodeSnapshotRequest serializes a read-only top-of-book request for m.
func EncodeSnapshotRequest(m book.Market) ([]byte, error) {
	exch := []byte(m.Exchange)
	inst := []byte(m.Instrument)
	if len(exch) > 255 || len(inst) > 255 {
		return nil, fmt.Errorf("transport: market identity too long")
	}

	buf := make([]byte, 0, headerLen+len(exch)+len(inst))
	buf = append(buf, snapshotKind)
	buf = appendUint64(buf, 0)
	buf = append(buf, byte(len(exch)), byte(len(inst)))
	buf = append(buf, exch...)
	buf = append(buf, inst...)
	return buf, nil
}

// DecodeSnapshotRequest parses the market identity out of a snapshot
// request built by EncodeSnapshotRequest.
func DecodeSnapshotRequest(data []byte) (book.Market, error) {
	if len(data) < headerLen {
		return book.Market{}, ErrMessageTooShort
	}
	exchLen := int(data[9])
	instLen := int(data[10])
	if len(data) < headerLen+exchLen+instLen {
		return book.Market{}, ErrMessageTooShort
	}
	return book.Market{
		Exchange:   string(data[headerLen : headerLen+exchLen]),
		Instrument: string(data[headerLen+exchLen : headerLen+exchLen+instLen]),
	}, nil
}

// Snapshot is the read-path reply to a snapshot request: best bid/ask plus
// the top few resting levels on each side, the wire counterpart of
// OrderBook.TopLevel/Levels.
type Snapshot struct {
	Market    book.Market
	BestBid   float64
	BestAsk   float64
	BidLevels []book.Level
	AskLevels []book.Level
}

// EncodeSnapshot serializes s as:
//
//	BestBid(8) BestAsk(8) NumBidLevels(1) {Price(8) Size(8) CumulativeNotional(8)}... NumAskLevels(1) {...}...
//
// The market identity is not re-encoded: the requester already knows which
// market it asked about.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	if len(s.BidLevels) > 255 || len(s.AskLevels) > 255 {
		return nil, fmt.Errorf("transport: too many levels to encode")
	}

	buf := make([]byte, 0, 18+24*(len(s.BidLevels)+len(s.AskLevels)))
	buf = appendFloat64(buf, s.BestBid)
	buf = appendFloat64(buf, s.BestAsk)
	buf = append(buf, byte(len(s.BidLevels)))
	for _, lvl := range s.BidLevels {
		buf = appendFloat64(buf, lvl.Price)
		buf = appendFloat64(buf, lvl.Size)
		buf = appendFloat64(buf, lvl.CumulativeNotional)
	}
	buf = append(buf, byte(len(s.AskLevels)))
	for _, lvl := range s.AskLevels {
		buf = appendFloat64(buf, lvl.Price)
		buf = appendFloat64(buf, lvl.Size)
		buf = appendFloat64(buf, lvl.CumulativeNotional)
	}
	return buf, nil
}

// DecodeSnapshot parses a Snapshot encoded by EncodeSnapshot. Market is left
// zero-value; the caller already knows which market it asked about.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	if len(data) < 17 {
		return Snapshot{}, ErrMessageTooShort
	}
	s := Snapshot{
		BestBid: readFloat64(data[0:8]),
		BestAsk: readFloat64(data[8:16]),
	}
	pos := 16
	nBids := int(data[pos])
	pos++
	for i := 0; i < nBids; i++ {
		if len(data) < pos+24 {
			return Snapshot{}, ErrMessageTooShort
		}
		s.BidLevels = append(s.BidLevels, book.Level{
			Price:              readFloat64(data[pos:]),
			Size:               readFloat64(data[pos+8:]),
			CumulativeNotional: readFloat64(data[pos+16:]),
		})
		pos += 24
	}
	if len(data) < pos+1 {
		return Snapshot{}, ErrMessageTooShort
	}
	nAsks := int(data[pos])
	pos++
	for i := 0; i < nAsks; i++ {
		if len(data) < pos+24 {
			return Snapshot{}, ErrMessageTooShort
		}
		s.AskLevels = append(s.AskLevels, book.Level{
			Price:              readFloat64(data[pos:]),
			Size:               readFloat64(data[pos+8:]),
			CumulativeNotional: readFloat64(data[pos+16:]),
		})
		pos += 24
	}
	return s, nil
}

// Encode serializes a Message to the wire format described above.
func Encode(msg Message) ([]byte, error) {
	exch := []byte(msg.Market.Exchange)
	inst := []byte(msg.Market.Instrument)
	if len(exch) > 255 || len(inst) > 255 {
		return nil, fmt.Errorf("transport: market identity too long")
	}

	buf := make([]byte, 0, headerLen+len(exch)+len(inst)+32)
	buf = append(buf, byte(msg.Event.Kind))
	buf = appendUint64(buf, msg.Event.Sequence)
	buf = append(buf, byte(len(exch)), byte(len(inst)))
	buf = append(buf, exch...)
	buf = append(buf, inst...)

	switch msg.Event.Kind {
	case book.Received, book.Open:
		buf = append(buf, byte(msg.Event.Order.Side))
		buf = appendFloat64(buf, msg.Event.Order.Price.Float())
		buf = appendFloat64(buf, msg.Event.Order.Size)
		idBytes := []byte(msg.Event.Order.ID)
		if len(idBytes) > 255 {
			return nil, fmt.Errorf("transport: order id too long")
		}
		buf = append(buf, byte(len(idBytes)))
		buf = append(buf, idBytes...)
	case book.Change:
		idBytes := []byte(msg.Event.OrderID)
		if len(idBytes) > 255 {
			return nil, fmt.Errorf("transport: order id too long")
		}
		buf = append(buf, byte(len(idBytes)))
		buf = append(buf, idBytes...)
		buf = appendFloat64(buf, msg.Event.NewSize)
	case book.Done:
		idBytes := []byte(msg.Event.OrderID)
		if len(idBytes) > 255 {
			return nil, fmt.Errorf("transport: order id too long")
		}
		buf = append(buf, byte(len(idBytes)))
		buf = append(buf, idBytes...)
	default:
		return nil, ErrInvalidKind
	}
	return buf, nil
}

// Decode parses a wire message. Open/Received events arriving with an empty
// order id are assigned a fresh one, matching the teacher's
// NewOrderMessage.Order() behavior of minting a uuid for id-less inbound
// orders.
func Decode(data []byte) (Message, error) {
	if len(data) < headerLen {
		return Message{}, ErrMessageTooShort
	}

	kind := book.EventKind(data[0])
	sequence := binary.BigEndian.Uint64(data[1:9])
	exchLen := int(data[9])
	instLen := int(data[10])

	pos := headerLen
	if len(data) < pos+exchLen+instLen {
		return Message{}, ErrMessageTooShort
	}
	market := book.Market{
		Exchange:   string(data[pos : pos+exchLen]),
		Instrument: string(data[pos+exchLen : pos+exchLen+instLen]),
	}
	pos += exchLen + instLen

	switch kind {
	case book.Received, book.Open:
		if len(data) < pos+1+8+8+1 {
			return Message{}, ErrMessageTooShort
		}
		side := book.Side(data[pos])
		pos++
		price := readFloat64(data[pos:])
		pos += 8
		size := readFloat64(data[pos:])
		pos += 8
		idLen := int(data[pos])
		pos++
		if len(data) < pos+idLen {
			return Message{}, ErrMessageTooShort
		}
		id := string(data[pos : pos+idLen])
		if id == "" {
			id = uuid.New().String()
		}

		p, err := book.NewPrice(price)
		if err != nil {
			return Message{}, err
		}
		order := book.Order{Side: side, Type: book.Limit, AtomicOrder: book.AtomicOrder{ID: id, Price: p, Size: size}}
		var event book.Event
		if kind == book.Received {
			event = book.ReceivedEvent(order, sequence)
		} else {
			event = book.OpenEvent(order, sequence)
		}
		return Message{Market: market, Event: event}, nil

	case book.Change:
		if len(data) < pos+1 {
			return Message{}, ErrMessageTooShort
		}
		idLen := int(data[pos])
		pos++
		if len(data) < pos+idLen+8 {
			return Message{}, ErrMessageTooShort
		}
		id := string(data[pos : pos+idLen])
		pos += idLen
		newSize := readFloat64(data[pos:])
		return Message{Market: market, Event: book.ChangeEvent(id, newSize, sequence)}, nil

	case book.Done:
		if len(data) < pos+1 {
			return Message{}, ErrMessageTooShort
		}
		idLen := int(data[pos])
		pos++
		if len(data) < pos+idLen {
			return Message{}, ErrMessageTooShort
		}
		id := string(data[pos : pos+idLen])
		return Message{Market: market, Event: book.DoneEvent(id, sequence)}, nil

	default:
		return Message{}, ErrInvalidKind
	}
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendFloat64(buf []byte, v float64) []byte {
	return appendUint64(buf, math.Float64bits(v))
}

func readFloat64(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}
