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
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

var watchInterval = time.Second

func (a *api) watch(w http.ResponseWriter, req *http.Request) {

	timeout, err := strconv.Atoi(req.URL.Query().Get("timeout"))
	if err != nil || timeout < 0 || 1800 < timeout {
		timeout = 600
	}

	log.Infof("starting watch for %s, timeout %d", req.RemoteAddr, timeout)
	update := make(chan *Change, 1)

	select {
	case a.longPollQueue <- update:
	case <-time.After(time.Duration(timeout) * time.Second):
		log.Infof("closing watch for %s after timeout", req.RemoteAddr)
		sendReply([]byte{}, http.StatusRequestTimeout, w)
		return
	case <-a.ctx.Done():
		sendReply([]byte{}, http.StatusServiceUnavailable, w)
		return
	}

	log.Infof("sending recorder change to %s", req.RemoteAddr)
	sendJSONReply(<-update, http.StatusOK, w)
}

func (a *api) watchDaemon() {

	log.Info("start watching for recorder changes")

	var last Change
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {

		select {
		case <-a.ctx.Done():
			log.Info("stopped watching for recorder changes")
			return
		case <-ticker.C:
		}

		stat := a.daemon.Status()
		change := Change{State: stat.State, Fault: stat.Fault}
		if change.State == last.State && change.Fault == last.Fault {
			continue
		}
		if stat.Recorded != last.Recorded {
			change.Recorded = stat.Recorded
		}
		last = change
		last.Recorded = stat.Recorded

		log.WithField("state", change.State).Info("recorder changes")

	Loop:
		for {
			select {
			case cl := <-a.longPollQueue:
				log.Info("notifying long poll client")
				c := change
				cl <- &c
			default:
				log.Info("all long poll clients notified")
				break Loop
			}
		}
	}
}
