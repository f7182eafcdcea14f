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
	"io"
	"net/http"
)

/*
signal changes the audio input. With the name argument, the input is a
generator (sine, noise) or a repository reference. Otherwise, samples are
taken from the request body, in the format given by the type argument.
*/
func (a *api) signal(w http.ResponseWriter, req *http.Request) {

	name, err := getArg(req, "name")
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	if name != "" {
		if handleError(a.daemon.SetSignal(name),
			http.StatusUnprocessableEntity, w) {
			return
		}
		sendReply([]byte(fmt.Sprintf("audio input set to %s", name)),
			http.StatusOK, w)
		return
	}

	typ, err := getArg(req, "type")
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	err = a.daemon.LoadSignal(io.LimitReader(req.Body, 16*1048576), typ)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}
	if handleError(req.Body.Close(), http.StatusInternalServerError, w) {
		return
	}

	sendReply([]byte("audio input loaded"), http.StatusOK, w)
}
