/*
   NVMRec - flash audio recorder
   Copyright (c) 2021, Alexander Vollschwitz

   This file is part of NVMRec.

   NVMRec is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   NVMRec is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with NVMRec. If not, see <http://www.gnu.org/licenses/>.
*/

package flash

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Erased is the value of every byte of an erased page.
const Erased = 0xFF

var (
	ErrNotErased  = errors.New("row not erased since last program")
	ErrOutOfRange = errors.New("address out of range")
	ErrMisaligned = errors.New("address misaligned")
	ErrLength     = errors.New("invalid data length")
)

// Kind is the type of a flash operation.
type Kind int

const (
	KindErase Kind = iota
	KindWrite
	KindRead
)

func (k Kind) String() string {
	switch k {
	case KindErase:
		return "erase"
	case KindWrite:
		return "write"
	case KindRead:
		return "read"
	default:
		return "<unknown>"
	}
}

// Operation describes a successful flash operation, for observers.
type Operation struct {
	Kind    Kind
	Address uint32
}

/*
Memory simulates a flash region with program/erase semantics: erasing a
page sets all its bytes to Erased, programming a row can only clear bits,
and a row can only be programmed once after its page was erased. Violations
are reported as errors, the same way a real NVM controller would flag them.

Memory is safe for concurrent use. The access lock is advisory and only
used for keeping long running readers, e.g. dumps, consistent.
*/
type Memory struct {
	base     uint32
	pageSize uint32
	rowSize  uint32
	//
	data         []byte
	programmable []bool
	counts       [3]int
	failing      map[Kind]error
	observer     func(Operation)
	mu           sync.Mutex
	//
	lock chan bool
}

// NewMemory creates an erased memory covering [base, base+size).
func NewMemory(base, size, pageSize, rowSize uint32) (*Memory, error) {

	if pageSize == 0 || rowSize == 0 || pageSize%rowSize != 0 {
		return nil, fmt.Errorf(
			"invalid page size %d for row size %d", pageSize, rowSize)
	}

	if size == 0 || size%pageSize != 0 {
		return nil, fmt.Errorf(
			"size %d is not a multiple of page size %d", size, pageSize)
	}

	m := &Memory{
		base:         base,
		pageSize:     pageSize,
		rowSize:      rowSize,
		data:         make([]byte, size),
		programmable: make([]bool, size/rowSize),
		failing:      map[Kind]error{},
		lock:         make(chan bool, 1),
	}

	for ix := range m.data {
		m.data[ix] = Erased
	}
	for ix := range m.programmable {
		m.programmable[ix] = true
	}

	return m, nil
}

func (m *Memory) Lock(ctx context.Context) bool {
	select {
	case m.lock <- true:
		log.Trace("flash locked")
		return true
	case <-ctx.Done():
		log.Debug("flash lock timed out")
		return false
	}
}

func (m *Memory) Unlock() {
	select {
	case <-m.lock:
		log.Trace("flash unlocked")
	default:
		log.Debug("flash was already unlocked")
	}
}

func (m *Memory) Base() uint32 {
	return m.base
}

func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

// OnOperation registers an observer called after every successful operation.
func (m *Memory) OnOperation(fn func(Operation)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

// FailNext makes the next operation of the given kind fail with err.
func (m *Memory) FailNext(k Kind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[k] = err
}

// Count returns how many operations of the given kind succeeded so far.
func (m *Memory) Count(k Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[k]
}

func (m *Memory) ErasePage(address uint32) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	off, err := m.offset(address, m.pageSize, KindErase)
	if err != nil {
		return err
	}

	for ix := off; ix < off+m.pageSize; ix++ {
		m.data[ix] = Erased
	}
	for r := off / m.rowSize; r < (off+m.pageSize)/m.rowSize; r++ {
		m.programmable[r] = true
	}

	m.done(KindErase, address)
	return nil
}

func (m *Memory) WriteRow(data []byte, address uint32) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	if uint32(len(data)) != m.rowSize {
		return ErrLength
	}

	off, err := m.offset(address, m.rowSize, KindWrite)
	if err != nil {
		return err
	}

	row := off / m.rowSize
	if !m.programmable[row] {
		return ErrNotErased
	}

	for ix, b := range data {
		m.data[off+uint32(ix)] &= b
	}
	m.programmable[row] = false

	m.done(KindWrite, address)
	return nil
}

func (m *Memory) ReadRow(buf []byte, address uint32) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	if uint32(len(buf)) != m.rowSize {
		return ErrLength
	}

	off, err := m.offset(address, m.rowSize, KindRead)
	if err != nil {
		return err
	}

	copy(buf, m.data[off:off+m.rowSize])
	m.done(KindRead, address)
	return nil
}

// Contents returns a copy of the first n bytes of the region.
func (m *Memory) Contents(n uint32) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > uint32(len(m.data)) {
		n = uint32(len(m.data))
	}
	ret := make([]byte, n)
	copy(ret, m.data)
	return ret
}

// Save writes the raw region image to w.
func (m *Memory) Save(w io.Writer) error {
	_, err := w.Write(m.Contents(m.Size()))
	return err
}

/*
Load replaces the region with an image read from r. The image may be shorter
than the region, the remainder is left erased. All rows are considered
programmed afterwards, so pages have to be erased before they can be
written again.
*/
func (m *Memory) Load(r io.Reader) error {

	img, err := io.ReadAll(io.LimitReader(r, int64(len(m.data))+1))
	if err != nil {
		return err
	}
	if len(img) > len(m.data) {
		return fmt.Errorf("image larger than region size %d", len(m.data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := copy(m.data, img)
	for ix := n; ix < len(m.data); ix++ {
		m.data[ix] = Erased
	}
	for ix := range m.programmable {
		m.programmable[ix] = false
	}

	log.WithField("bytes", n).Debug("flash image loaded")
	return nil
}

// Dump writes a hex dump of the first n bytes of the region to w.
func (m *Memory) Dump(w io.Writer, n uint32) error {
	d := hex.Dumper(w)
	if _, err := d.Write(m.Contents(n)); err != nil {
		return err
	}
	return d.Close()
}

// offset validates address for an operation on a unit of the given size, and
// returns its offset into the region. Caller holds the mutex.
func (m *Memory) offset(address, unit uint32, k Kind) (uint32, error) {

	if err, ok := m.failing[k]; ok {
		delete(m.failing, k)
		return 0, err
	}

	if address < m.base || address-m.base >= uint32(len(m.data)) {
		return 0, fmt.Errorf("%s at 0x%08X: %w", k, address, ErrOutOfRange)
	}

	off := address - m.base
	if off%unit != 0 {
		return 0, fmt.Errorf("%s at 0x%08X: %w", k, address, ErrMisaligned)
	}

	return off, nil
}

// done records a successful operation. Caller holds the mutex.
func (m *Memory) done(k Kind, address uint32) {
	m.counts[k]++
	if m.observer != nil {
		m.observer(Operation{Kind: k, Address: address})
	}
}
