// Package idgen provides the manager's identifier allocator: a globally
// unique, monotonic id generator tagged by a control code (SPEC_FULL.md
// section 4.6). The default implementation wraps github.com/google/uuid's
// time-ordered UUIDv7, giving monotonic-enough ordering for free instead of
// hand-rolling a counter, following the retry convention already used by
// this module's UUID helper.
package idgen

import (
	"time"

	guuid "github.com/google/uuid"

	sop "github.com/SharedCode/sop"
)

// ControlCode tags the kind of id being requested. Default codes per
// SPEC_FULL.md section 6: 0 for transaction, 1 for prepare, 2 for commit.
type ControlCode uint16

const (
	ControlTransaction ControlCode = 0
	ControlPrepare     ControlCode = 1
	ControlCommit      ControlCode = 2
)

// IDService is the capability the manager consumes to allocate tid/pid/cid
// values. The control code lets a backend tag or partition ids by kind; the
// core treats the returned id as opaque but totally ordered and globally
// unique for its lifetime.
type IDService interface {
	Gen(ctrl ControlCode) sop.UUID
}

type uuidService struct{}

// New returns the default UUIDv7-backed IDService.
func New() IDService {
	return &uuidService{}
}

// Gen returns a time-ordered UUIDv7 with its trailing 16 random bits
// overwritten by ctrl, the way the original GuidGen.gen embeds the control
// id into the generated guid. Those bits are the least significant of the
// UUIDv7 layout, so ordering by timestamp is unaffected; only the final
// 16 bits of randomness are traded for the tag.
func (s *uuidService) Gen(ctrl ControlCode) sop.UUID {
	id := s.genRaw()
	id[14] = byte(ctrl >> 8)
	id[15] = byte(ctrl)
	return id
}

func (s *uuidService) genRaw() sop.UUID {
	id, err := guuid.NewV7()
	if err == nil {
		return sop.UUID(id)
	}
	// Generating an id is a must; retry briefly the way sop.NewUUID does,
	// and panic only if every attempt fails (should never happen).
	for i := 0; i < 10; i++ {
		id, err = guuid.NewV7()
		if err == nil {
			return sop.UUID(id)
		}
		time.Sleep(time.Millisecond)
	}
	panic(err)
}
