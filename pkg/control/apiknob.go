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
	"fmt"
	"net/http"
)

func (a *api) knob(w http.ResponseWriter, req *http.Request) {

	v, err := getIntArg(req, "value")
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	if v < 0 {
		handleError(fmt.Errorf("invalid knob value: %d", v),
			http.StatusUnprocessableEntity, w)
		return
	}

	if handleError(a.daemon.SetKnob(uint32(v)),
		http.StatusUnprocessableEntity, w) {
		return
	}

	sendReply([]byte(fmt.Sprintf("knob set to %d", v)), http.StatusOK, w)
}
