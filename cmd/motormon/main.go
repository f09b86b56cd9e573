package main

import (
	"context"
	"flag"
	"strings"

	"github.com/golang/glog"
	"github.com/golang/protobuf/jsonpb"

	"github.com/robotalks/motorlink/pkg/bridge/mqtt"
	"github.com/robotalks/motorlink/pkg/env"
	"github.com/robotalks/motorlink/pkg/framework"
)

func init() {
	env.SetupFlags()
}

func handle(topic string, payload []byte) {
	switch {
	case strings.HasSuffix(topic, "/"+mqtt.TopicTelemetry):
		s, err := mqtt.DecodeTelemetry(payload)
		if err != nil {
			glog.Warningf("%s: bad telemetry: %v", topic, err)
			return
		}
		out, err := (&jsonpb.Marshaler{}).MarshalToString(s)
		if err != nil {
			glog.Warningf("%s: %v", topic, err)
			return
		}
		glog.Infof("%s: %s", topic, out)
	case strings.HasSuffix(topic, "/"+mqtt.TopicMeta):
		if len(payload) == 0 {
			glog.Infof("%s: offline", topic)
			return
		}
		glog.Infof("%s: %s", topic, string(payload))
	default:
		glog.Infof("%s: %q", topic, string(payload))
	}
}

func main() {
	flag.Parse()
	if err := env.LoadDefault(); err != nil {
		glog.Fatalln(err)
	}
	q, err := mqtt.NewQueueFromURL(env.Default().MQTTBrokerURL)
	if err != nil {
		glog.Fatalln(err)
	}
	q.Sub("#", handle)
	err = framework.NewRunner().HandleSignals().Go(framework.RunFunc(func(ctx context.Context) error {
		if err := q.Connect(ctx); err != nil {
			return err
		}
		defer q.Close()
		<-ctx.Done()
		return ctx.Err()
	})).Wait()
	if err != nil {
		glog.Fatalln(err)
	}
}
