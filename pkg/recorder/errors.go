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
	"errors"
	"fmt"
)

// ErrHalted is returned for operations attempted after a fault.
var ErrHalted = errors.New("device halted after fault")

// ErrOverrun signals that a burst did not fit into the backlog.
var ErrOverrun = errors.New("transfer backlog overrun")

// Op names a flash operation.
type Op string

const (
	OpErase Op = "erase"
	OpWrite Op = "write"
	OpRead  Op = "read"
)

// MediumError reports a failed flash operation. It is always fatal.
type MediumError struct {
	Op      Op
	Address uint32
	Err     error
}

func (e *MediumError) Error() string {
	return fmt.Sprintf("flash %s at 0x%08X failed: %v", e.Op, e.Address, e.Err)
}

func (e *MediumError) Unwrap() error {
	return e.Err
}

// GeometryError reports an unusable flash geometry.
type GeometryError struct {
	Reason string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("invalid geometry: %s", e.Reason)
}
