package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/motorlink/pkg/env"
	"github.com/robotalks/motorlink/pkg/framework"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	if err := env.LoadDefault(); err != nil {
		glog.Fatalln(err)
	}
	conf := env.NewConfig()
	client := conf.MustNewClient()
	defer client.Close()
	bridge, err := conf.NewBridge(client)
	if err != nil {
		glog.Fatalln(err)
	}
	if err := client.Connect(); err != nil {
		glog.Fatalln(err)
	}
	glog.Infof("bridging %s as %s", conf.Transport, conf.DeviceID)
	err = framework.NewRunner().HandleSignals().Go(
		framework.NamedRun("link", client),
		framework.NamedRun("bridge", bridge),
	).Wait()
	if err != nil {
		glog.Fatalln(err)
	}
}
