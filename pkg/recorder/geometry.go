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

package recorder

import (
	"fmt"
)

// defaults of the original board, a PIC32 with 1 KiB pages and 128 byte rows
const (
	DefaultBase       = 0x1D00B800
	DefaultPageSize   = 1024
	DefaultRowSize    = 128
	DefaultEraseBurst = 512
	DefaultWriteBurst = 16
	DefaultMaxSamples = 83968
)

// MidScale is the output value for silence.
const MidScale = 128

/*
Geometry describes the flash region used for recording and the burst sizes
the scheduler requests from the transfer service. All sizes are counted in
samples, and since one sample is stored as one byte, also in bytes.
*/
type Geometry struct {
	// flash address of the first sample
	Base uint32
	// erase unit
	PageSize uint32
	// program unit
	RowSize uint32
	// burst requested while a page erase is in progress; its duration should
	// cover the erase latency
	EraseBurst uint32
	// minimum burst requested after a row program
	WriteBurst uint32
	// capacity of the region
	MaxSamples uint32
}

func DefaultGeometry() Geometry {
	return Geometry{
		Base:       DefaultBase,
		PageSize:   DefaultPageSize,
		RowSize:    DefaultRowSize,
		EraseBurst: DefaultEraseBurst,
		WriteBurst: DefaultWriteBurst,
		MaxSamples: DefaultMaxSamples,
	}
}

// Validate checks that the geometry can be used by scheduler and player.
func (g Geometry) Validate() error {

	if g.PageSize == 0 || g.RowSize == 0 {
		return &GeometryError{Reason: "page and row size must be non-zero"}
	}

	if g.PageSize%g.RowSize != 0 {
		return &GeometryError{Reason: fmt.Sprintf(
			"page size %d is not a multiple of row size %d",
			g.PageSize, g.RowSize)}
	}

	// erases always cover whole pages, so the region has to end on a page
	// boundary
	if g.MaxSamples == 0 || g.MaxSamples%g.PageSize != 0 {
		return &GeometryError{Reason: fmt.Sprintf(
			"max samples %d is not a non-zero multiple of page size %d",
			g.MaxSamples, g.PageSize)}
	}

	if g.Base%g.PageSize != 0 {
		return &GeometryError{Reason: fmt.Sprintf(
			"base address 0x%08X is not page aligned", g.Base)}
	}

	if g.EraseBurst == 0 || g.WriteBurst == 0 {
		return &GeometryError{Reason: "burst sizes must be non-zero"}
	}

	// the backlog left by an erase burst has to drain within one page
	if g.EraseBurst+g.RowsPerPage()*g.WriteBurst > g.PageSize {
		return &GeometryError{Reason: fmt.Sprintf(
			"erase burst %d plus %d write bursts of %d exceed page size %d",
			g.EraseBurst, g.RowsPerPage(), g.WriteBurst, g.PageSize)}
	}

	if uint64(g.Base)+uint64(g.MaxSamples) > 1<<32 {
		return &GeometryError{Reason: "region exceeds address space"}
	}

	return nil
}

func (g Geometry) RowsPerPage() uint32 {
	return g.PageSize / g.RowSize
}

// End returns the first address after the region.
func (g Geometry) End() uint32 {
	return g.Base + g.MaxSamples
}

// transferCapacity is the largest burst the scheduler may request.
func (g Geometry) transferCapacity() uint32 {
	return max32(g.EraseBurst, g.RowSize, g.WriteBurst)
}

/*
backlogCapacity bounds the samples received but not yet assembled into a
row. Between two erases, at least one row is programmed per burst, and a
burst is never larger than needed to complete a row, unless it is an erase
burst or the minimum write burst. So the backlog never exceeds one erase
burst plus one row plus a write burst per row in a page.
*/
func (g Geometry) backlogCapacity() uint32 {
	return g.EraseBurst + 2*g.RowSize + g.RowsPerPage()*g.WriteBurst
}

func max32(v uint32, more ...uint32) uint32 {
	for _, m := range more {
		if m > v {
			v = m
		}
	}
	return v
}
