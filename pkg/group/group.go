package group

import (
	"errors"
	"fmt"
	"time"

	"github.com/spatialdb/spatialdb/pkg/docdb"
	"github.com/spatialdb/spatialdb/pkg/idbtree"
	"github.com/spatialdb/spatialdb/pkg/refcount"
	"github.com/spatialdb/spatialdb/pkg/sigheader"
	"github.com/spatialdb/spatialdb/pkg/updater"
	"github.com/spatialdb/spatialdb/pkg/vfile"
	"github.com/spatialdb/spatialdb/pkg/vtree"
)

// ErrShutdown is returned to every pending and future RequestGroup call
// once a coordinator has terminated by explicit Shutdown. A coordinator
// terminated by an updater crash or a failed header commit returns that
// failure's own error instead.
var ErrShutdown = errors.New("group: coordinator shut down")

// ErrInvalidViewSeq is returned when a caller requests a sequence ahead
// of the document database's own current sequence — there is no amount
// of waiting that will make the group reach it.
var ErrInvalidViewSeq = errors.New("group: requested sequence is ahead of the database")

// commitDelay is a var, not a const, so tests can shrink it instead of
// sleeping a full second per assertion.
var commitDelay = time.Second

const checkpointInterval = 200

// State is the snapshot RequestGroup hands back: the database sequence
// the trees reflect and the root of every declared index as of that
// sequence.
type State struct {
	CurrentSeq uint64
	PurgeSeq   uint64
	Roots      []vtree.Root
}

func (s State) clone() State {
	return State{
		CurrentSeq: s.CurrentSeq,
		PurgeSeq:   s.PurgeSeq,
		Roots:      append([]vtree.Root(nil), s.Roots...),
	}
}

// OpenDB opens a fresh handle onto the document database an updater run
// drives against. The coordinator calls this once per run and closes
// the handle when the run ends, mirroring a worker connection distinct
// from the coordinator's own monitor handle.
type OpenDB func() (docdb.Database, error)

type requestMsg struct {
	seq   uint64
	reply chan requestReply
}

type requestReply struct {
	state  State
	handle *refcount.Handle
	err    error
}

type partialUpdateMsg struct {
	seq   uint64
	roots []vtree.Root
}

type updaterFinishedMsg struct {
	seq   uint64
	roots []vtree.Root
}

type updaterCrashMsg struct {
	err error
}

type dbMonitorDownMsg struct{}

type delayedCommitMsg struct{}

type waiter struct {
	seq   uint64
	reply chan requestReply
}

// Coordinator is a single-goroutine actor owning one index file's
// mutable state: the current tree roots, the id-btree side table, the
// in-flight updater run if any, and the readers waiting on a sequence
// the updater hasn't reached yet.
type Coordinator struct {
	msgs chan interface{}
	done chan struct{}

	file      *vfile.File
	handle    *refcount.Handle
	cfg       vtree.Config
	funcs     []updater.IndexedFunc
	sig       sigheader.Signature
	openDB    OpenDB
	monitorDB docdb.Database
	idIndex   *idbtree.Tree

	termErr error

	updaterRunning bool
	commitArmed    bool
	commitTimer    *time.Timer
	waiters        []waiter
}

// Open reads (or initializes) a group's committed state from file and
// starts its coordinator goroutine. monitorDB is kept open for the
// coordinator's own lifetime, used to bound requests against the
// database's actual current sequence and to gate header commits on its
// committed sequence; openDB is called once per updater run for a
// separate working handle.
func Open(
	file *vfile.File,
	cfg vtree.Config,
	funcs []updater.IndexedFunc,
	sig sigheader.Signature,
	monitorDB docdb.Database,
	openDB OpenDB,
) (*Coordinator, error) {
	state := State{Roots: make([]vtree.Root, len(funcs))}
	idIndex := idbtree.New(idbtree.DefaultOrder)

	raw, err := file.ReadHeader()
	switch {
	case err == nil:
		h, derr := sigheader.Decode(raw)
		if derr != nil {
			return nil, fmt.Errorf("group: decoding header: %w", derr)
		}
		if h.Matches(sig) {
			if len(h.IndexRoots) != len(funcs) {
				return nil, fmt.Errorf("group: header declares %d indices, group declares %d", len(h.IndexRoots), len(funcs))
			}
			state.CurrentSeq = h.CurrentSeq
			state.PurgeSeq = h.PurgeSeq
			for i, off := range h.IndexRoots {
				r, rerr := vtree.RootFromOffset(file, off)
				if rerr != nil {
					return nil, fmt.Errorf("group: reading root for index %d: %w", i, rerr)
				}
				state.Roots[i] = r
			}
			if h.IDBtreeOffset != sigheader.NilOffset {
				blob, berr := file.ReadAt(h.IDBtreeOffset)
				if berr != nil {
					return nil, fmt.Errorf("group: reading id index: %w", berr)
				}
				idIndex, berr = idbtree.Unmarshal(blob)
				if berr != nil {
					return nil, fmt.Errorf("group: decoding id index: %w", berr)
				}
			}
			break
		}
		// A signature mismatch means the index definition changed since
		// this header was committed: per spec, the file is truncated
		// and reset rather than left carrying a stale, unreachable tree
		// alongside the fresh empty state already built above.
		if rerr := file.Reset(); rerr != nil {
			return nil, fmt.Errorf("group: resetting file after signature mismatch: %w", rerr)
		}
	case errors.Is(err, vfile.ErrNoHeader):
		// Fresh file: start from the empty state already built above.
	default:
		return nil, fmt.Errorf("group: reading header: %w", err)
	}

	c := &Coordinator{
		msgs:      make(chan interface{}),
		done:      make(chan struct{}),
		file:      file,
		handle:    refcount.New(file),
		cfg:       cfg,
		funcs:     funcs,
		sig:       sig,
		monitorDB: monitorDB,
		openDB:    openDB,
		idIndex:   idIndex,
	}
	go c.run(state)
	return c, nil
}

// RequestGroup answers immediately if the group's trees already reflect
// requestedSeq, otherwise blocks until an updater run reaches it. On
// success it returns a State and a ref-counted handle the caller must
// Release once done reading through the state's roots.
func (c *Coordinator) RequestGroup(requestedSeq uint64) (State, *refcount.Handle, error) {
	reply := make(chan requestReply, 1)
	select {
	case c.msgs <- requestMsg{seq: requestedSeq, reply: reply}:
	case <-c.done:
		return State{}, nil, c.terminationError()
	}
	select {
	case r := <-reply:
		return r.state, r.handle, r.err
	case <-c.done:
		return State{}, nil, c.terminationError()
	}
}

// File returns the underlying append-only file a caller should read
// through once it holds a ref-counted handle from RequestGroup. The
// file is safe for concurrent reads from multiple goroutines; nothing
// about a snapshot's validity depends on when File is called relative
// to RequestGroup, only that the handle obtained alongside the state is
// still held (not yet Released) while reading.
func (c *Coordinator) File() *vfile.File {
	return c.file
}

// Shutdown stops the coordinator, failing every pending and future
// RequestGroup call with ErrShutdown, and blocks until the coordinator
// goroutine has fully wound down (including releasing its hold on the
// underlying file). Safe to call more than once.
func (c *Coordinator) Shutdown() {
	select {
	case c.msgs <- dbMonitorDownMsg{}:
	case <-c.done:
		return
	}
	<-c.done
}

func (c *Coordinator) terminationError() error {
	if c.termErr != nil {
		return c.termErr
	}
	return ErrShutdown
}

func (c *Coordinator) run(state State) {
	for {
		msg := <-c.msgs
		switch m := msg.(type) {
		case requestMsg:
			c.handleRequest(&state, m)
		case partialUpdateMsg:
			state.CurrentSeq = m.seq
			state.Roots = m.roots
			c.armCommitTimer()
			c.resolveWaiters(&state)
		case updaterFinishedMsg:
			c.updaterRunning = false
			state.CurrentSeq = m.seq
			state.Roots = m.roots
			c.armCommitTimer()
			c.resolveWaiters(&state)
		case updaterCrashMsg:
			c.fail(fmt.Errorf("group: updater crashed: %w", m.err))
			return
		case dbMonitorDownMsg:
			c.fail(ErrShutdown)
			return
		case delayedCommitMsg:
			c.commitArmed = false
			if err := c.tryCommit(&state); err != nil {
				c.fail(fmt.Errorf("group: committing header: %w", err))
				return
			}
		}
	}
}

func (c *Coordinator) handleRequest(state *State, m requestMsg) {
	dbCurrent, err := c.monitorDB.CurrentSeq()
	if err != nil {
		m.reply <- requestReply{err: fmt.Errorf("group: checking database sequence: %w", err)}
		return
	}
	if m.seq > dbCurrent {
		m.reply <- requestReply{err: ErrInvalidViewSeq}
		return
	}
	if m.seq <= state.CurrentSeq {
		c.handle.AddRef()
		m.reply <- requestReply{state: state.clone(), handle: c.handle}
		return
	}

	c.waiters = append(c.waiters, waiter{seq: m.seq, reply: m.reply})
	if !c.updaterRunning {
		c.spawnUpdater(*state)
	}
}

func (c *Coordinator) resolveWaiters(state *State) {
	var remaining []waiter
	for _, w := range c.waiters {
		if w.seq <= state.CurrentSeq {
			c.handle.AddRef()
			w.reply <- requestReply{state: state.clone(), handle: c.handle}
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining

	if len(c.waiters) > 0 && !c.updaterRunning {
		c.spawnUpdater(*state)
	}
}

func (c *Coordinator) spawnUpdater(state State) {
	c.updaterRunning = true
	roots := append([]vtree.Root(nil), state.Roots...)
	startSeq := state.CurrentSeq

	go func() {
		db, err := c.openDB()
		if err != nil {
			c.postMsg(updaterCrashMsg{err: fmt.Errorf("opening database: %w", err)})
			return
		}
		defer db.Close()

		report := func(p updater.Progress) {
			c.postMsg(partialUpdateMsg{seq: p.Seq, roots: p.Roots})
		}

		final, err := updater.Run(c.file, c.cfg, db, c.funcs, c.idIndex, startSeq, roots, checkpointInterval, report)
		if err != nil {
			c.postMsg(updaterCrashMsg{err: err})
			return
		}
		c.postMsg(updaterFinishedMsg{seq: final.Seq, roots: final.Roots})
	}()
}

// postMsg delivers a message from the updater goroutine, abandoning the
// send if the coordinator has already terminated.
func (c *Coordinator) postMsg(msg interface{}) {
	select {
	case c.msgs <- msg:
	case <-c.done:
	}
}

func (c *Coordinator) armCommitTimer() {
	if c.commitArmed {
		return
	}
	c.commitArmed = true
	c.commitTimer = time.AfterFunc(commitDelay, func() {
		c.postMsg(delayedCommitMsg{})
	})
}

// tryCommit is the durability fence: a header is only written once the
// database itself has committed at least as far as the sequence the
// trees now reflect. Until then the timer keeps re-arming instead of
// writing.
func (c *Coordinator) tryCommit(state *State) error {
	committed, err := c.monitorDB.CommittedSeq()
	if err != nil {
		return fmt.Errorf("checking committed sequence: %w", err)
	}
	if committed < state.CurrentSeq {
		c.armCommitTimer()
		return nil
	}
	return c.commitHeader(state)
}

func (c *Coordinator) commitHeader(state *State) error {
	blob, err := c.idIndex.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling id index: %w", err)
	}
	idOffset, err := c.file.Append(blob)
	if err != nil {
		return fmt.Errorf("appending id index: %w", err)
	}

	roots := make([]int64, len(state.Roots))
	for i, r := range state.Roots {
		roots[i] = vtree.RootOffset(r)
	}

	h := sigheader.Header{
		Signature:     c.sig,
		CurrentSeq:    state.CurrentSeq,
		PurgeSeq:      state.PurgeSeq,
		IDBtreeOffset: idOffset,
		IndexRoots:    roots,
	}
	return c.file.WriteHeader(sigheader.Encode(h))
}

func (c *Coordinator) fail(err error) {
	c.termErr = err
	if c.commitTimer != nil {
		c.commitTimer.Stop()
	}
	for _, w := range c.waiters {
		w.reply <- requestReply{err: err}
	}
	c.waiters = nil
	c.handle.Retire()
	c.handle.Release() // give up the coordinator's own hold, taken at New
	close(c.done)
}
