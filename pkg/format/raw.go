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

package format

import (
	"io"
)

// Raw is the layout the recorder keeps in memory: one byte per sample, no
// header.
type Raw struct{}

func NewRaw() *Raw {
	return &Raw{}
}

func (r *Raw) Read(in io.Reader) ([]byte, error) {
	return io.ReadAll(in)
}

func (r *Raw) Write(data []byte, out io.Writer,
	params map[string]interface{}) error {
	_, err := out.Write(data)
	return err
}
