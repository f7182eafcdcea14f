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

package run

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// daemonStub records requests and replies with body, or with an error for
// paths containing "fail"
type daemonStub struct {
	*httptest.Server
	requests []string
}

func newDaemonStub(t *testing.T, body string) *daemonStub {
	s := &daemonStub{}
	s.Server = httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			s.requests = append(s.requests, r.Method+" "+r.URL.RequestURI())
			if strings.Contains(r.URL.RawQuery, "fail") {
				w.WriteHeader(http.StatusUnprocessableEntity)
				w.Write([]byte("no good\n"))
				return
			}
			w.Write([]byte(body))
		}))
	t.Cleanup(s.Close)
	return s
}

func (s *daemonStub) args(t *testing.T, more ...string) []string {
	u, err := url.Parse(s.URL)
	require.NoError(t, err)
	return append([]string{"--server", u.Hostname(), "--port", u.Port()},
		more...)
}

func TestLine_Levels(t *testing.T) {

	stub := newDaemonStub(t, "ok")

	require.NoError(t, NewRecord().Execute(stub.args(t, "--level", "1")))
	require.NoError(t, NewPlay().Execute(stub.args(t)))
	assert.Error(t, NewPlay().Execute(stub.args(t, "--level", "3")))

	assert.Equal(t, []string{
		"PUT /line/record?level=1",
		"PUT /line/play",
	}, stub.requests)
}

func TestKnob(t *testing.T) {

	stub := newDaemonStub(t, "ok")

	require.NoError(t, NewKnob().Execute(stub.args(t, "-v", "512")))
	require.NoError(t, NewKnob().Execute(stub.args(t)))

	assert.Equal(t, []string{"PUT /knob?value=512"}, stub.requests)
}

func TestSave(t *testing.T) {

	stub := newDaemonStub(t, "RIFF....")
	file := filepath.Join(t.TempDir(), "take.wav")

	require.NoError(t, NewSave().Execute(stub.args(t, "-o", file)))
	require.NoError(t, NewSave().Execute(
		stub.args(t, "-o", file, "--played", "-f")))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "RIFF....", string(data))
	assert.Equal(t, []string{
		"GET /recording?type=wav",
		"GET /output?type=wav",
	}, stub.requests)
}

func TestApiCall_ErrorReply(t *testing.T) {

	stub := newDaemonStub(t, "ok")
	u, err := url.Parse(stub.URL)
	require.NoError(t, err)

	r := NewRunner("test", "", "", "", "", func() error { return nil })
	r.Server = u.Hostname()
	r.Port, err = strconv.Atoi(u.Port())
	require.NoError(t, err)
	_, err = r.apiCall("GET", "/status?fail", false, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "no good")
}

func TestGetExtension(t *testing.T) {
	assert.Equal(t, "wav", getExtension("/tmp/take.wav"))
	assert.Equal(t, "", getExtension("take"))
}

func TestSignal(t *testing.T) {

	stub := newDaemonStub(t, "ok")
	file := filepath.Join(t.TempDir(), "in.raw")
	require.NoError(t, os.WriteFile(file, []byte{1, 2, 3}, 0644))

	require.NoError(t, NewSignal().Execute(stub.args(t, "-n", "repo://a b.wav")))
	require.NoError(t, NewSignal().Execute(stub.args(t, "-i", file)))
	assert.Error(t, NewSignal().Execute(stub.args(t)))

	assert.Equal(t, []string{
		"PUT /signal?name=repo%3A%2F%2Fa+b.wav",
		"PUT /signal?type=raw",
	}, stub.requests)
}

func TestCommand_ConfigFile(t *testing.T) {

	stub := newDaemonStub(t, "ok")
	u, err := url.Parse(stub.URL)
	require.NoError(t, err)

	cfg := filepath.Join(t.TempDir(), "nvmrec.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(
		"server: "+u.Hostname()+"\nport: "+u.Port()+"\nvalue: 42\n"), 0644))
	t.Setenv(ConfigEnv, cfg)

	require.NoError(t, NewKnob().Execute([]string{"--value", "7"}))
	require.NoError(t, NewKnob().Execute([]string{}))

	assert.Equal(t, []string{
		"PUT /knob?value=7",
		"PUT /knob?value=42",
	}, stub.requests)
}

func TestCommand_MissingConfigFile(t *testing.T) {
	t.Setenv(ConfigEnv, filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, NewStatus().Execute([]string{"--port", "1"}))
}
