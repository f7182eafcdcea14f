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
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []byte {
	ret := make([]byte, n)
	for ix := range ret {
		ret[ix] = byte(ix * 7)
	}
	return ret
}

func TestNewFormat(t *testing.T) {
	for _, typ := range []string{"", "raw", "wav"} {
		f, err := NewFormat(typ)
		assert.NoError(t, err, typ)
		assert.NotNil(t, f, typ)
	}
	_, err := NewFormat("mp3")
	assert.Error(t, err)
}

func TestRaw_RoundTrip(t *testing.T) {

	data := ramp(300)
	var out bytes.Buffer
	require.NoError(t, NewRaw().Write(data, &out, nil))
	assert.Equal(t, data, out.Bytes())

	got, err := NewRaw().Read(&out)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWAV_RoundTrip(t *testing.T) {

	data := ramp(1000)
	var out bytes.Buffer
	require.NoError(t, NewWAV().Write(data, &out,
		map[string]interface{}{"rate": 11025}))

	dec := wav.NewDecoder(bytes.NewReader(out.Bytes()))
	dec.ReadInfo()
	require.True(t, dec.IsValidFile())
	assert.Equal(t, uint32(11025), dec.SampleRate)
	assert.Equal(t, uint16(1), dec.NumChans)
	assert.Equal(t, uint16(16), dec.BitDepth)

	got, err := NewWAV().Read(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWAV_MixesDownStereo(t *testing.T) {

	path := filepath.Join(t.TempDir(), "stereo.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	left := []byte{0, 100, 200, 254}
	right := []byte{2, 100, 50, 0}
	var samples []int
	for ix := range left {
		samples = append(samples, toSigned16(left[ix]), toSigned16(right[ix]))
	}

	enc := wav.NewEncoder(f, 8000, 16, 2, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           samples,
		Format:         &audio.Format{SampleRate: 8000, NumChannels: 2},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close()

	got, err := NewWAV().Read(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 100, 125, 127}, got)
}

func TestWAV_Invalid(t *testing.T) {
	_, err := NewWAV().Read(bytes.NewReader([]byte("definitely not RIFF")))
	assert.Error(t, err)
}

func TestIntParam(t *testing.T) {
	assert.Equal(t, 5, intParam(nil, "rate", 5))
	assert.Equal(t, 7, intParam(map[string]interface{}{"rate": 7}, "rate", 5))
	assert.Equal(t, 9,
		intParam(map[string]interface{}{"rate": uint32(9)}, "rate", 5))
	assert.Equal(t, 5,
		intParam(map[string]interface{}{"rate": "fast"}, "rate", 5))
}
