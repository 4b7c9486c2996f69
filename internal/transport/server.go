package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"garm/internal/book"
	"garm/internal/market"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = time.Second
	eventChanSize      = 128
)

var ErrUnknownMarket = errors.New("transport: unknown market")

// dispatchTask is one decoded unit of work queued for its market's
// eventHandler: either a book event to apply, or a read-only snapshot
// request. Either way a reply channel lets the read-worker that decoded it
// report the outcome to the originating connection synchronously.
type dispatchTask struct {
	event      book.Event
	isSnapshot bool
	result     chan dispatchResult
}

// dispatchResult is what an eventHandler sends back for a dispatchTask: err
// is set for a failed event; snapshot is set for every snapshot request. An
// unknown market is reported before a task is queued, not through this type.
type dispatchResult struct {
	err      error
	snapshot *Snapshot
}

// Server accepts event-feed connections over TCP and dispatches each decoded
// message to its market's OrderBook, adapted from the teacher's
// internal/net/server.go accept-loop-plus-worker-pool shape. Unlike the
// teacher's long-lived per-client sessions (which track trade reports back
// to each party), this server is a one-way feed: every connection is a
// stream of book events for one or more markets, acknowledged or rejected
// in line.
//
// Decoding happens on the shared read-worker pool, same as the teacher, but
// applying a decoded event to its book never runs on that pool: every
// market gets exactly one eventHandler goroutine draining a buffered
// channel, so concurrent connections touching the same market never call
// OrderBook.Process concurrently (spec §5's single-producer-per-book
// requirement).
type Server struct {
	address   string
	directory *market.Directory
	pool      WorkerPool
	cancel    context.CancelFunc

	handlersMu sync.Mutex
	handlers   map[book.Market]chan dispatchTask
}

// New returns a Server bound to address (e.g. ":7070") that dispatches
// decoded events into directory.
func New(address string, directory *market.Directory) *Server {
	return &Server{
		address:   address,
		directory: directory,
		pool:      NewWorkerPool(defaultNWorkers),
		handlers:  make(map[book.Market]chan dispatchTask),
	}
}

// Run blocks, accepting connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.address)
	if err != nil {
		log.Error().Err(err).Str("address", s.address).Msg("unable to start listener")
		return
	}
	// Closing the listener once ctx is done unblocks a pending Accept, so the
	// loop below returns on cancellation without waiting for a connection.
	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	log.Info().Str("address", s.address).Msg("garm transport listening")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error().Err(err).Msg("error accepting connection")
				continue
			}
			log.Info().Str("remote", conn.RemoteAddr().String()).Msg("connection accepted")
			s.pool.AddTask(conn)
		}
	}
}

// Shutdown stops the accept loop, worker pool, and every eventHandler.
func (s *Server) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

// handleConnection reads one message off conn, decodes it, hands it to its
// market's eventHandler, and replies once that handler responds: a book
// event gets a one-byte status (0 = ok, 1 = error), a snapshot request gets
// an encoded Snapshot on success or the one-byte error status on failure.
// The connection is then requeued for its next message. Any error returned
// here is fatal to the worker that hit it, matching the teacher's
// handleConnection contract.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return fmt.Errorf("transport: task is not a net.Conn")
	}

	select {
	case <-t.Dying():
		return conn.Close()
	default:
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("failed setting deadline")
		conn.Close()
		return nil
	}

	buf := make([]byte, maxRecvSize)
	n, err := conn.Read(buf)
	if err != nil {
		log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("connection closed")
		conn.Close()
		return nil
	}

	payload, err := s.dispatch(t, buf[:n])
	switch {
	case err != nil:
		log.Error().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("error handling message")
		conn.Write([]byte{1})
	case payload != nil:
		conn.Write(payload)
	default:
		conn.Write([]byte{0})
	}

	s.pool.AddTask(conn)
	return nil
}

// dispatch decodes data and routes it to its market's eventHandler, blocking
// for that handler's result (or the tomb dying) so the caller can ack
// synchronously. For a snapshot request the returned payload is the encoded
// Snapshot to write back in place of the usual one-byte ack; for a book
// event the payload is always nil.
func (s *Server) dispatch(t *tomb.Tomb, data []byte) ([]byte, error) {
	if IsSnapshotRequest(data) {
		return s.dispatchSnapshot(t, data)
	}

	msg, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("transport: decode: %w", err)
	}

	ch, err := s.eventChannel(t, msg.Market)
	if err != nil {
		return nil, err
	}

	result := make(chan dispatchResult, 1)
	select {
	case <-t.Dying():
		return nil, nil
	case ch <- dispatchTask{event: msg.Event, result: result}:
	}

	select {
	case <-t.Dying():
		return nil, nil
	case res := <-result:
		return nil, res.err
	}
}

// dispatchSnapshot decodes a snapshot request and routes it through the
// target market's eventHandler, same as a book event, so a snapshot read
// never races a concurrent Process call against that market.
func (s *Server) dispatchSnapshot(t *tomb.Tomb, data []byte) ([]byte, error) {
	market, err := DecodeSnapshotRequest(data)
	if err != nil {
		return nil, fmt.Errorf("transport: decode: %w", err)
	}

	ch, err := s.eventChannel(t, market)
	if err != nil {
		return nil, err
	}

	result := make(chan dispatchResult, 1)
	select {
	case <-t.Dying():
		return nil, nil
	case ch <- dispatchTask{isSnapshot: true, result: result}:
	}

	select {
	case <-t.Dying():
		return nil, nil
	case res := <-result:
		if res.err != nil {
			return nil, res.err
		}
		return EncodeSnapshot(*res.snapshot)
	}
}

// eventChannel returns the buffered task channel for m's eventHandler,
// lazily starting that goroutine (tomb-scoped, like the rest of the
// server) the first time m is seen.
func (s *Server) eventChannel(t *tomb.Tomb, m book.Market) (chan dispatchTask, error) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()

	if ch, ok := s.handlers[m]; ok {
		return ch, nil
	}

	ob := s.directory.Get(m)
	if ob == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMarket, m)
	}

	ch := make(chan dispatchTask, eventChanSize)
	s.handlers[m] = ch
	t.Go(func() error { return eventHandler(t, ob, ch) })
	return ch, nil
}

// eventHandler is the single goroutine that owns one market's OrderBook: it
// drains ch and calls Process (or reads a snapshot) serially, so no two
// goroutines ever touch the same book concurrently.
func eventHandler(t *tomb.Tomb, ob *book.OrderBook, ch chan dispatchTask) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-ch:
			if task.isSnapshot {
				task.result <- dispatchResult{snapshot: snapshotOf(ob)}
				continue
			}
			task.result <- dispatchResult{err: ob.Process(task.event)}
		}
	}
}

// snapshotOf reads ob's current top-of-book and top-5 liquidity levels on
// each side into a wire Snapshot.
func snapshotOf(ob *book.OrderBook) *Snapshot {
	bid, ask := ob.TopLevel()
	return &Snapshot{
		Market:    ob.Market(),
		BestBid:   bid,
		BestAsk:   ask,
		BidLevels: ob.Levels(book.Buy, 5),
		AskLevels: ob.Levels(book.Sell, 5),
	}
}
