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
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	log "github.com/sirupsen/logrus"
)

const DefaultSampleRate = 8000

const wavBitDepth = 16

/*
WAV converts between recordings and PCM WAV files. Recordings are written
as 16 bit mono. Any PCM file can be read, multiple channels are mixed down
and samples are scaled to 8 bit.
*/
type WAV struct{}

func NewWAV() *WAV {
	return &WAV{}
}

func (w *WAV) Read(in io.Reader) ([]byte, error) {

	data, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("error decoding WAV data: %v", err)
	}

	chans := int(dec.NumChans)
	depth := int(dec.BitDepth)
	if chans < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", chans)
	}
	if depth < 8 || depth > 32 {
		return nil, fmt.Errorf("unsupported bit depth: %d", depth)
	}

	log.WithFields(log.Fields{
		"rate":     dec.SampleRate,
		"channels": chans,
		"depth":    depth,
	}).Debug("reading WAV")

	ret := make([]byte, len(buf.Data)/chans)
	for ix := range ret {
		sum := 0
		for c := 0; c < chans; c++ {
			sum += buf.Data[ix*chans+c]
		}
		ret[ix] = toUnsigned8(sum/chans, depth)
	}

	return ret, nil
}

func (w *WAV) Write(data []byte, out io.Writer,
	params map[string]interface{}) error {

	rate := intParam(params, "rate", DefaultSampleRate)

	// the encoder needs to seek back for patching the header
	f, err := os.CreateTemp("", "nvmrec-*.wav")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	enc := wav.NewEncoder(f, rate, wavBitDepth, 1, 1)

	samples := make([]int, len(data))
	for ix, s := range data {
		samples[ix] = toSigned16(s)
	}

	if err := enc.Write(&audio.IntBuffer{
		Data:           samples,
		Format:         &audio.Format{SampleRate: rate, NumChannels: 1},
		SourceBitDepth: wavBitDepth,
	}); err != nil {
		return fmt.Errorf("error encoding WAV data: %v", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("error finalizing WAV file: %v", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	_, err = io.Copy(out, f)
	return err
}

func toSigned16(s byte) int {
	return (int(s) - 128) << 8
}

// toUnsigned8 scales a decoded sample to 8 bit unsigned; 8 bit PCM is
// unsigned already
func toUnsigned8(v, depth int) byte {
	if depth == 8 {
		return byte(v)
	}
	return byte((v >> (depth - 8)) + 128)
}
