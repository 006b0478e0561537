package ident

import (
	"os"
	"sync/atomic"

	"github.com/sony/sonyflake"
)

// Generator yields unique, roughly time-ordered int64 message ids.
type Generator interface {
	NextID() (int64, error)
}

// Flake generates ids with sonyflake. Ids are unique across instances and
// sort by creation time, which keeps ListBetween ordering stable when two
// messages land on the same timestamp.
type Flake struct {
	sf *sonyflake.Sonyflake
}

func NewFlake() *Flake {
	sf := sonyflake.NewSonyflake(sonyflake.Settings{})
	if sf == nil {
		// No private IP to derive a machine id from (containers, CI).
		sf = sonyflake.NewSonyflake(sonyflake.Settings{
			MachineID: func() (uint16, error) { return uint16(os.Getpid()), nil },
		})
	}
	return &Flake{sf: sf}
}

func (f *Flake) NextID() (int64, error) {
	id, err := f.sf.NextID()
	if err != nil {
		return 0, err
	}
	return int64(id), nil
}

// Sequence is a plain atomic counter for tests and dev mode.
type Sequence struct {
	n int64
}

func (s *Sequence) NextID() (int64, error) {
	return atomic.AddInt64(&s.n, 1), nil
}
