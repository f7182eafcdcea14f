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

package control

import (
	"github.com/xelalexv/nvmrec/pkg/recorder"
)

type Status struct {
	recorder.Status
	Connected bool `json:"connected"`
}

func (s *Status) String() string {
	box := "not connected"
	if s.Connected {
		box = "connected"
	}
	return s.Status.String() + "box:       " + box + "\n"
}

// Change is sent to watchers when the recorder changes state. Recorded is
// only set when a recording was made.
type Change struct {
	State    string `json:"state"`
	Recorded uint32 `json:"recorded,omitempty"`
	Fault    string `json:"fault,omitempty"`
}
