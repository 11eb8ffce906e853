package doip

import (
	"time"

	"github.com/doipgw/doip/internal/codec"
	"github.com/doipgw/doip/internal/constants"
)

// tick advances every time-driven behavior the entity owns: the vehicle
// announcement schedule and each connection's inactivity/alive-check
// timers. It translates doip_entity_update_timers's elapsed-ms counters
// into absolute deadlines compared against now.
func (e *Entity) tick(now time.Time) {
	e.tickAnnouncement(now)

	for connID, cs := range e.conns {
		if !cs.activated {
			if now.After(cs.initialDeadline) {
				e.closeConnection(connID)
			}
			continue
		}

		if cs.aliveCheckPending {
			if now.After(cs.aliveDeadline) {
				e.observer.ObserveAliveCheck(true)
				e.closeConnection(connID)
			}
			continue
		}

		if now.After(cs.generalDeadline) {
			e.sendAliveCheckRequest(connID, cs, now)
		}
	}
}

func (e *Entity) tickAnnouncement(now time.Time) {
	if e.announcementCount >= constants.AnnouncementLimit {
		return
	}
	if now.Before(e.announcementAt) {
		return
	}
	e.sendVehicleAnnouncement()
	e.announcementCount++
	e.announcementAt = now.Add(constants.AnnouncementInterval)
}

func (e *Entity) sendAliveCheckRequest(connID int, cs *connState, now time.Time) {
	buf := make([]byte, codec.HeaderSize)
	if err := codec.EncodeHeader(codec.CurrentHeader(codec.PayloadTypeAliveCheckReq, 0), buf); err != nil {
		e.logf("encode alive check request: %v", err)
		return
	}
	if err := e.iface.TCPSend(connID, buf); err != nil {
		e.logf("send alive check request: %v", err)
		return
	}
	cs.aliveCheckPending = true
	cs.aliveDeadline = now.Add(e.config.AliveCheckTimeout)
	e.observer.ObserveAliveCheck(false)
}

// closeConnection tears down both the transport socket and the entity's
// bookkeeping for connID.
func (e *Entity) closeConnection(connID int) {
	e.iface.CloseConnection(connID)
	delete(e.conns, connID)
	e.observer.ObserveConnectionClosed()
}
