package carver

// UnknownCollector accumulates contiguous runs of bytes that match no known
// PK signature into UnknownFragments, splitting on long all-zero runs and
// absorbing the bookkeeping needed when the carver changes its mind about a
// tentative parse (spec §4.3).
type UnknownCollector struct {
	frags           []UnknownFragment
	open            *UnknownFragment
	zeroRun         int
	pendingRollback bool
}

// PushByte feeds one stream byte at absolute offset to the collector.
func (u *UnknownCollector) PushByte(offset int64, b byte) {
	if b == 0 && u.open == nil {
		return
	}
	if b == 0 {
		u.zeroRun++
		u.open.End = offset + 1
		u.appendMagic(b)
		if u.zeroRun >= GapThreshold {
			u.closeTrimmed()
		}
		return
	}
	u.zeroRun = 0
	if u.open == nil {
		u.open = &UnknownFragment{Start: offset, Rollback: u.pendingRollback}
		u.pendingRollback = false
	}
	u.open.End = offset + 1
	u.appendMagic(b)
}

func (u *UnknownCollector) appendMagic(b byte) {
	if len(u.open.Magic) < 4 {
		u.open.Magic = append(u.open.Magic, b)
	}
}

func (u *UnknownCollector) closeTrimmed() {
	u.open.End -= int64(u.zeroRun)
	if u.open.End > u.open.Start {
		u.frags = append(u.frags, *u.open)
	}
	u.open = nil
	u.zeroRun = 0
}

// UndoHeader rewinds the open fragment's end by 3 bytes, correcting for the
// leading bytes of a signature that were forwarded one at a time before the
// 4-byte sliding window completed the match (the byte that completes the
// match is never forwarded in the first place). A fragment emptied by the
// rewind is discarded rather than flushed.
func (u *UnknownCollector) UndoHeader() {
	if u.open == nil {
		return
	}
	u.open.End -= 3
	if u.open.End <= u.open.Start {
		u.open = nil
		u.zeroRun = 0
		return
	}
	if len(u.open.Magic) > 4 {
		u.open.Magic = u.open.Magic[:4]
	}
	u.frags = append(u.frags, *u.open)
	u.open = nil
	u.zeroRun = 0
}

// Rollback discards the currently open fragment (if any) and marks the next
// fragment opened thereafter as having followed an abandoned parse.
func (u *UnknownCollector) Rollback() {
	u.open = nil
	u.zeroRun = 0
	u.pendingRollback = true
}

// EOF flushes any still-open fragment at end of stream, untrimmed.
func (u *UnknownCollector) EOF() {
	if u.open != nil {
		u.frags = append(u.frags, *u.open)
		u.open = nil
	}
}

// Fragments returns every closed UnknownFragment observed so far, in order.
func (u *UnknownCollector) Fragments() []UnknownFragment {
	return u.frags
}
