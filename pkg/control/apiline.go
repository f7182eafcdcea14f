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
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/xelalexv/nvmrec/pkg/recorder"
)

// line sets the level of the record or play line, or toggles it when no
// level is given
func (a *api) line(w http.ResponseWriter, req *http.Request) {

	line := mux.Vars(req)["line"]

	level, err := getArg(req, "level")
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	switch level {
	case "":
		err = a.daemon.Toggle(line)
	case "0":
		err = a.daemon.SetLine(line, false)
	case "1":
		err = a.daemon.SetLine(line, true)
	default:
		err = fmt.Errorf("invalid level: %s", level)
	}

	if err != nil {
		if errors.Is(err, recorder.ErrHalted) {
			handleError(err, http.StatusConflict, w)
		} else {
			handleError(err, http.StatusUnprocessableEntity, w)
		}
		return
	}

	sendReply([]byte(fmt.Sprintf("%s line set", line)), http.StatusOK, w)
}
