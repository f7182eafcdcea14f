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
	"fmt"
	"io"
)

// Reader interface for reading in a recording as 8 bit unsigned samples
type Reader interface {
	Read(in io.Reader) ([]byte, error)
}

// Writer interface for writing out a recording; params may carry format
// specific settings, such as the sample rate
type Writer interface {
	Write(data []byte, out io.Writer, params map[string]interface{}) error
}

// ReaderWriter interface for reading/writing a recording
type ReaderWriter interface {
	Reader
	Writer
}

func NewFormat(typ string) (ReaderWriter, error) {

	switch typ {

	case "raw", "":
		return NewRaw(), nil

	case "wav":
		return NewWAV(), nil

	default:
		return nil, fmt.Errorf("unsupported recording format: %s", typ)
	}
}

// intParam gets an integer setting from params, or def if not present
func intParam(params map[string]interface{}, key string, def int) int {
	if params != nil {
		switch v := params[key].(type) {
		case int:
			return v
		case uint32:
			return int(v)
		}
	}
	return def
}
