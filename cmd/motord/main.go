package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/motorlink/pkg/env"
	"github.com/robotalks/motorlink/pkg/framework"
	"github.com/robotalks/motorlink/pkg/l0/comm"
	"github.com/robotalks/motorlink/pkg/l0/device"
	"github.com/robotalks/motorlink/pkg/l0/transport"
	"github.com/robotalks/motorlink/pkg/sim"
)

const connectPollInterval = 100 * time.Millisecond

func init() {
	env.SetupFlags()
	sim.SetupFlags()
}

type daemon struct {
	motor    *sim.Motor
	session  *device.Session
	tasks    *sim.TaskRegistry
	listener transport.Listener

	restartOnMarker bool
}

// serve handles one host at a time, like a USB device does.
func (d *daemon) serve(ctx context.Context) error {
	for {
		conn, err := d.listener.Accept(ctx)
		if err != nil {
			return err
		}
		glog.Info("host attached")
		link := comm.NewLink(conn)
		link.Parser().RestartOnMarker = d.restartOnMarker
		router := device.NewRouter(d.motor, link)
		router.Session = d.session
		router.Console.Session = d.session
		router.Console.Memory = sim.RuntimeMemory{}
		router.Console.Tasks = d.tasks
		link.Handler = router
		err = framework.RunWithContextCloser(ctx, conn, func() error {
			return link.Run(ctx)
		})
		glog.Infof("host detached: %v", err)
		d.session.SetOverride(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (d *daemon) watchConnect(ctx context.Context) error {
	ticker := time.NewTicker(connectPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if d.session.ConnectEvent() {
				glog.Info("host connected")
			}
		}
	}
}

func main() {
	flag.Parse()
	if err := env.LoadDefault(); err != nil {
		glog.Fatalln(err)
	}
	conf := env.NewConfig()
	ln, err := conf.NewListener()
	if err != nil {
		glog.Fatalln(err)
	}
	defer ln.Close()
	glog.Infof("listening on %s", ln.Addr())

	d := &daemon{
		motor:    sim.NewMotorConfig().NewMotor(),
		session:  &device.Session{},
		tasks:    &sim.TaskRegistry{},
		listener: ln,

		restartOnMarker: conf.RestartOnMarker,
	}
	err = framework.NewRunner().HandleSignals().Go(
		d.tasks.Register("motor", 5, d.motor),
		d.tasks.Register("link", 3, framework.RunFunc(d.serve)),
		d.tasks.Register("connect", 1, framework.RunFunc(d.watchConnect)),
	).Wait()
	if err != nil {
		glog.Fatalln(err)
	}
}
