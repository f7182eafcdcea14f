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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/nvmrec/pkg/daemon"
	"github.com/xelalexv/nvmrec/pkg/format"
)

const (
	contentText = "text/plain; charset=UTF-8"
	contentJSON = "application/json; charset=UTF-8"
	contentRaw  = "application/octet-stream"
	contentWAV  = "audio/wav"
)

type APIServer interface {
	Serve() error
	Stop() error
}

func NewAPIServer(addr string, d *daemon.Daemon) APIServer {
	return newAPI(addr, d)
}

func newAPI(addr string, d *daemon.Daemon) *api {
	ctx, cancel := context.WithCancel(context.Background())
	return &api{
		address:       addr,
		daemon:        d,
		longPollQueue: make(chan chan *Change),
		ctx:           ctx,
		cancel:        cancel,
	}
}

type api struct {
	address string
	daemon  *daemon.Daemon
	server  *http.Server
	//
	longPollQueue chan chan *Change
	ctx           context.Context
	cancel        context.CancelFunc
}

func (a *api) Serve() error {

	addr := a.address
	if len(strings.Split(addr, ":")) < 2 {
		addr = fmt.Sprintf("%s:8888", a.address)
	}

	log.Infof("NVMRec API starts listening on %s", addr)
	a.server = &http.Server{Addr: addr, Handler: a.router()}

	go a.watchDaemon()

	err := a.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *api) Stop() error {
	a.cancel()
	if a.server != nil {
		log.Info("API server stopping...")
		err := a.server.Shutdown(context.Background())
		a.server = nil
		return err
	}
	return nil
}

func (a *api) router() *mux.Router {

	router := mux.NewRouter().StrictSlash(true)

	addRoute(router, "status", "GET", "/status", a.status)
	addRoute(router, "watch", "GET", "/watch", a.watch)
	addRoute(router, "line", "PUT", "/line/{line:record|play}", a.line)
	addRoute(router, "knob", "PUT", "/knob", a.knob)
	addRoute(router, "signal", "PUT", "/signal", a.signal)
	addRoute(router, "recording", "GET", "/recording", a.recording)
	addRoute(router, "output", "GET", "/output", a.output)
	addRoute(router, "dump", "GET", "/dump", a.dump)

	router.NotFoundHandler = requestLogger(
		http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			handleError(fmt.Errorf("no such resource: %s %s",
				req.Method, req.URL.Path), http.StatusNotFound, w)
		}), "not found")

	return router
}

func addRoute(r *mux.Router, name, method, pattern string,
	handler http.HandlerFunc) {
	r.Methods(method).
		Path(pattern).
		Name(name).
		Handler(requestLogger(handler, name))
}

func requestLogger(inner http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		log.WithFields(log.Fields{
			"remote": r.RemoteAddr,
			"method": r.Method,
			"path":   r.RequestURI,
		}).Debugf("API BEGIN | %s", name)

		start := time.Now()
		inner.ServeHTTP(w, r)

		log.WithFields(log.Fields{
			"remote":   r.RemoteAddr,
			"method":   r.Method,
			"path":     r.RequestURI,
			"duration": time.Since(start),
		}).Debugf("API END   | %s", name)
	})
}

// getFormat returns the audio format requested via the type argument, and
// the content type to use for it
func getFormat(w http.ResponseWriter,
	req *http.Request) (format.ReaderWriter, string) {

	arg, err := getArg(req, "type")
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return nil, ""
	}
	ret, err := format.NewFormat(arg)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return nil, ""
	}
	if strings.ToLower(arg) == "wav" {
		return ret, contentWAV
	}
	return ret, contentRaw
}

func getArg(req *http.Request, arg string) (string, error) {
	ret := req.URL.Query().Get(arg)
	if ret != "" {
		return url.QueryUnescape(ret)
	}
	return ret, nil
}

func getIntArg(req *http.Request, arg string) (int, error) {
	val, err := getArg(req, arg)
	if err != nil {
		return -1, err
	}
	ret, err := strconv.Atoi(val)
	if err != nil {
		return -1, fmt.Errorf("invalid %s: '%s'", arg, val)
	}
	return ret, nil
}

func setHeaders(h http.Header, contentType string) {
	h.Set("Content-Type", contentType)
}

func handleError(e error, statusCode int, w http.ResponseWriter) bool {

	if e == nil {
		return false
	}

	log.Errorf("%v", e)

	setHeaders(w.Header(), contentText)
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(fmt.Sprintf("%v\n", e))); err != nil {
		log.Errorf("problem writing error: %v", err)
	}

	return true
}

func sendReply(body []byte, statusCode int, w http.ResponseWriter) {
	setHeaders(w.Header(), contentText)
	w.WriteHeader(statusCode)
	if _, err := fmt.Fprintf(w, "%s\n", body); err != nil {
		log.Errorf("problem sending reply: %v", err)
	}
}

func sendStreamReply(r io.Reader, contentType string, statusCode int,
	w http.ResponseWriter) {
	setHeaders(w.Header(), contentType)
	w.WriteHeader(statusCode)
	if _, err := io.Copy(w, r); err != nil {
		log.Errorf("problem sending reply: %v", err)
	}
}

func sendJSONReply(obj interface{}, statusCode int, w http.ResponseWriter) {
	setHeaders(w.Header(), contentJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.Errorf("problem writing JSON reply: %v", err)
	}
}

// wantsJSON checks whether the client asked for JSON, either via Accept or
// Content-Type header
func wantsJSON(req *http.Request) bool {
	for _, h := range []string{"Accept", "Content-Type"} {
		for _, v := range strings.Split(req.Header.Get(h), ",") {
			mt := strings.TrimSpace(strings.Split(v, ";")[0])
			if strings.EqualFold(mt, "application/json") {
				return true
			}
		}
	}
	return false
}
