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
	"bytes"
	"io"
	"net/http"
)

func (a *api) recording(w http.ResponseWriter, req *http.Request) {

	writer, contentType := getFormat(w, req)
	if writer == nil {
		return
	}

	data, err := a.daemon.Recording()
	if handleError(err, http.StatusLocked, w) {
		return
	}

	a.sendAudio(writer.Write, contentType, data, w)
}

// output sends what was played since the last call
func (a *api) output(w http.ResponseWriter, req *http.Request) {

	writer, contentType := getFormat(w, req)
	if writer == nil {
		return
	}

	a.sendAudio(writer.Write, contentType, a.daemon.Output(), w)
}

func (a *api) sendAudio(
	write func([]byte, io.Writer, map[string]interface{}) error,
	contentType string, data []byte, w http.ResponseWriter) {

	var out bytes.Buffer
	if handleError(write(data, &out,
		map[string]interface{}{"rate": a.daemon.SampleRate()}),
		http.StatusInternalServerError, w) {
		return
	}

	sendStreamReply(&out, contentType, http.StatusOK, w)
}

func (a *api) dump(w http.ResponseWriter, req *http.Request) {

	read, write := io.Pipe()

	go func() {
		write.CloseWithError(a.daemon.Dump(write))
	}()

	sendStreamReply(read, contentText, http.StatusOK, w)
}
