package device

import (
	"context"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/motorlink/pkg/l0/comm"
)

// Router dispatches received packets to the controller and console.
// Requests that can't be served (no override, short body, unknown
// type) are dropped without reply.
type Router struct {
	Session    *Session
	Controller Controller
	Console    *Console
	Sender     Sender
}

// NewRouter creates a Router with a Console writing to sender.
func NewRouter(ctl Controller, sender Sender) *Router {
	s := &Session{}
	return &Router{
		Session:    s,
		Controller: ctl,
		Sender:     sender,
		Console: &Console{
			Session:    s,
			Controller: ctl,
			Out:        &ConsoleWriter{Sender: sender},
		},
	}
}

// HandlePacket implements comm.PacketHandler.
func (r *Router) HandlePacket(ctx context.Context, pkt *comm.Packet) {
	glog.V(3).Infof("packet %s len=%d", pkt.Type, len(pkt.Body))
	switch pkt.Type {
	case comm.TypeConnect:
		r.Session.MarkConnect()
	case comm.TypeConsole:
		line := string(pkt.Body)
		if i := strings.IndexByte(line, 0); i >= 0 {
			line = line[:i]
		}
		r.Console.Process(line)
	case comm.TypeUSBOverrideStart:
		r.Session.SetOverride(true)
	case comm.TypeUSBOverrideEnd:
		r.Session.SetOverride(false)
	case comm.TypeSetDutyCycle:
		if v, ok := r.setPoint(pkt, comm.DutyScale); ok {
			r.Controller.SetDuty(v)
		}
	case comm.TypeSetCurrent:
		if v, ok := r.setPoint(pkt, comm.CurrentScale); ok {
			r.Controller.SetCurrent(v)
		}
	case comm.TypeGetData:
		payload := ReadTelemetry(r.Controller).ReplyPayload()
		if err := r.Sender.SendFrame(payload); err != nil {
			glog.Warningf("send telemetry error: %v", err)
		}
	default:
		glog.V(2).Infof("packet %s ignored", pkt.Type)
	}
}

func (r *Router) setPoint(pkt *comm.Packet, scale float64) (float32, bool) {
	if !r.Session.Override() {
		glog.V(2).Infof("packet %s skipped: USB control not enabled", pkt.Type)
		return 0, false
	}
	v, ok := comm.DecodeScaled(pkt.Body, scale)
	if !ok {
		glog.V(2).Infof("packet %s skipped: body too short", pkt.Type)
	}
	return v, ok
}
