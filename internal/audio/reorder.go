package audio

import "fmt"

// ReorderBuffer restores sequence order for packetized audio before it is fed
// to detection. In-order packets pass straight through; out-of-order packets
// are held until the gap fills or grows past maxGap, at which point the
// missing sequences are written off as lost and the stream skips ahead.
//
// A ReorderBuffer serves one stream and is not safe for concurrent use; the
// owning session serializes access.
type ReorderBuffer struct {
	started     bool
	expectedSeq uint32
	lastSeq     uint32

	pending map[uint32][]float32
	maxGap  uint32

	totalPackets uint32
	lostPackets  uint32
	dupPackets   uint32
}

// ReorderStats is a snapshot of reorder counters for monitoring.
type ReorderStats struct {
	TotalPackets uint32  `json:"total_packets"`
	LostPackets  uint32  `json:"lost_packets"`
	DupPackets   uint32  `json:"duplicate_packets"`
	LossRate     float64 `json:"loss_rate"`
	PendingSeqs  int     `json:"pending_sequences"`
	LastSequence uint32  `json:"last_sequence"`
}

const defaultMaxGap = 20

// NewReorderBuffer creates a reorder buffer. A maxGap of 0 selects the
// default of 20 packets.
func NewReorderBuffer(maxGap uint32) *ReorderBuffer {
	if maxGap == 0 {
		maxGap = defaultMaxGap
	}
	return &ReorderBuffer{
		pending: make(map[uint32][]float32),
		maxGap:  maxGap,
	}
}

// Push accepts one packet and returns the samples that are now deliverable in
// sequence order: zero chunks when the packet only filled the pending buffer,
// one or more when it unblocked the stream. The samples are retained by the
// buffer; callers must not modify them after Push.
func (b *ReorderBuffer) Push(sequence uint32, samples []float32) ([][]float32, error) {
	b.totalPackets++

	// First packet establishes the sequence origin.
	if !b.started {
		b.started = true
		b.expectedSeq = sequence
		b.lastSeq = sequence - 1
	}

	switch {
	case sequence == b.expectedSeq:
		// Perfect order - deliver directly, then drain anything it unblocked.
		ready := [][]float32{samples}
		b.lastSeq = sequence
		b.expectedSeq = sequence + 1
		return append(ready, b.drainPending()...), nil

	case sequence > b.expectedSeq:
		// Future packet - hold it until the gap fills.
		if _, exists := b.pending[sequence]; exists {
			b.dupPackets++
			return nil, fmt.Errorf("duplicate packet: seq=%d", sequence)
		}
		b.pending[sequence] = samples

		// Gap too large to keep waiting: write the missing range off as
		// lost and skip ahead to the oldest pending packet.
		if sequence-b.expectedSeq > b.maxGap {
			b.lostPackets += b.skipTo()
			return b.drainPending(), nil
		}
		return nil, nil

	default:
		// At or before lastSeq: duplicate or a packet already written off.
		b.dupPackets++
		return nil, fmt.Errorf("ignoring old/duplicate packet: seq=%d, lastSeq=%d", sequence, b.lastSeq)
	}
}

// Flush abandons any gap still outstanding and returns the pending packets in
// sequence order. Called when the stream ends.
func (b *ReorderBuffer) Flush() [][]float32 {
	var ready [][]float32
	for len(b.pending) > 0 {
		b.lostPackets += b.skipTo()
		ready = append(ready, b.drainPending()...)
	}
	return ready
}

// Reset returns the buffer to its initial state.
func (b *ReorderBuffer) Reset() {
	b.started = false
	b.expectedSeq = 0
	b.lastSeq = 0
	b.pending = make(map[uint32][]float32)
	b.totalPackets = 0
	b.lostPackets = 0
	b.dupPackets = 0
}

// Stats returns a snapshot of the reorder counters.
func (b *ReorderBuffer) Stats() ReorderStats {
	lossRate := float64(0)
	if b.totalPackets > 0 {
		lossRate = float64(b.lostPackets) / float64(b.totalPackets+b.lostPackets) * 100
	}

	return ReorderStats{
		TotalPackets: b.totalPackets,
		LostPackets:  b.lostPackets,
		DupPackets:   b.dupPackets,
		LossRate:     lossRate,
		PendingSeqs:  len(b.pending),
		LastSequence: b.lastSeq,
	}
}

// drainPending delivers consecutive pending packets starting at expectedSeq.
func (b *ReorderBuffer) drainPending() [][]float32 {
	var ready [][]float32
	for {
		samples, exists := b.pending[b.expectedSeq]
		if !exists {
			return ready
		}
		ready = append(ready, samples)
		delete(b.pending, b.expectedSeq)
		b.lastSeq = b.expectedSeq
		b.expectedSeq++
	}
}

// skipTo advances expectedSeq to the oldest pending sequence and returns the
// number of sequences written off as lost.
func (b *ReorderBuffer) skipTo() uint32 {
	if len(b.pending) == 0 {
		return 0
	}

	oldest := uint32(0)
	first := true
	for seq := range b.pending {
		if first || seq < oldest {
			oldest = seq
			first = false
		}
	}

	lost := oldest - b.expectedSeq
	b.expectedSeq = oldest
	return lost
}
