// Package env provides the common configuration of motorlink commands.
package env

import (
	"flag"
	"io/ioutil"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	mqttbridge "github.com/robotalks/motorlink/pkg/bridge/mqtt"
	"github.com/robotalks/motorlink/pkg/l0/host"
	"github.com/robotalks/motorlink/pkg/l0/transport"
)

// AppID is used to derive the device ID from the machine ID.
const AppID = "motorlink"

// Config provides common options of motorlink commands.
type Config struct {
	// Transport is the URL the host opens to reach the device.
	// e.g. /dev/ttyACM0?baud=115200, tcp://host:port, ws://host:port/path
	Transport string `yaml:"transport"`
	// Listen is the URL the simulated device accepts hosts on.
	Listen string `yaml:"listen"`
	// MQTTBrokerURL specifies the MQTT broker to bridge to.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt"`
	// DeviceID names the device in MQTT topics.
	DeviceID          string        `yaml:"device_id"`
	TelemetryInterval time.Duration `yaml:"telemetry_interval"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	// RestartOnMarker makes the frame parser restart on a start marker
	// received in the middle of a frame.
	RestartOnMarker bool `yaml:"restart_on_marker"`

	ConfigFile string `yaml:"-"`
}

var defaultConfig = Config{
	Transport:         "tcp://localhost:7300",
	Listen:            "tcp://:7300",
	MQTTBrokerURL:     "mqtt://localhost:1883/motorlink/",
	TelemetryInterval: mqttbridge.DefaultInterval,
	RequestTimeout:    mqttbridge.DefaultRequestTimeout,
}

func init() {
	if id, err := machineid.ProtectedID(AppID); err == nil && len(id) >= 12 {
		defaultConfig.DeviceID = id[:12]
	} else {
		defaultConfig.DeviceID, _ = os.Hostname()
	}
	applyEnv(&defaultConfig, os.Getenv)
}

func applyEnv(c *Config, getenv func(string) string) {
	if val := getenv("MOTORLINK_TRANSPORT"); val != "" {
		c.Transport = val
	}
	if val := getenv("MOTORLINK_LISTEN"); val != "" {
		c.Listen = val
	}
	if val := getenv("MOTORLINK_MQTT_URL"); val != "" {
		c.MQTTBrokerURL = val
	}
	if val := getenv("MOTORLINK_DEVICE_ID"); val != "" {
		c.DeviceID = val
	}
	if val := getenv("MOTORLINK_RESTART_ON_MARKER"); val != "" {
		if en, err := strconv.ParseBool(val); err == nil {
			c.RestartOnMarker = en
		}
	}
	if val := getenv("MOTORLINK_CONFIG"); val != "" {
		c.ConfigFile = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Transport, "transport", defaultConfig.Transport, "Transport URL to the device.")
	flag.StringVar(&defaultConfig.Listen, "listen", defaultConfig.Listen, "Listen URL of the device.")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL.")
	flag.StringVar(&defaultConfig.DeviceID, "id", defaultConfig.DeviceID, "Device ID.")
	flag.DurationVar(&defaultConfig.TelemetryInterval, "interval", defaultConfig.TelemetryInterval, "Telemetry polling interval.")
	flag.DurationVar(&defaultConfig.RequestTimeout, "timeout", defaultConfig.RequestTimeout, "Request timeout.")
	flag.BoolVar(&defaultConfig.RestartOnMarker, "restart-on-marker", defaultConfig.RestartOnMarker, "Restart frame on start marker.")
	flag.StringVar(&defaultConfig.ConfigFile, "config", defaultConfig.ConfigFile, "YAML config file.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadFile merges settings from a YAML file.
func (c *Config) LoadFile(fn string) error {
	data, err := ioutil.ReadFile(fn)
	if err != nil {
		return errors.Wrap(err, "read config")
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return errors.Wrapf(err, "parse config %s", fn)
	}
	return nil
}

// LoadDefault loads the file specified by -config into the default
// config, flags explicitly set on command line take precedence.
// It must be called after flag.Parse.
func LoadDefault() error {
	if defaultConfig.ConfigFile == "" {
		return nil
	}
	explicit := make(map[string]string)
	flag.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})
	if err := defaultConfig.LoadFile(defaultConfig.ConfigFile); err != nil {
		return err
	}
	for name, val := range explicit {
		if err := flag.Set(name, val); err != nil {
			return errors.Wrapf(err, "flag %s", name)
		}
	}
	glog.V(2).Infof("config loaded from %s", defaultConfig.ConfigFile)
	return nil
}

// NewClient opens the transport and creates a host Client.
func (c *Config) NewClient() (*host.Client, error) {
	rw, err := transport.Open(c.Transport)
	if err != nil {
		return nil, err
	}
	client := host.NewClient(rw)
	client.Link().Parser().RestartOnMarker = c.RestartOnMarker
	return client, nil
}

// MustNewClient creates a Client and fails on error.
func (c *Config) MustNewClient() *host.Client {
	client, err := c.NewClient()
	if err != nil {
		glog.Fatalln(err)
	}
	return client
}

// NewListener starts accepting hosts on Listen.
func (c *Config) NewListener() (transport.Listener, error) {
	return transport.Listen(c.Listen)
}

// NewBridge creates an MQTT bridge for client.
func (c *Config) NewBridge(client *host.Client) (*mqttbridge.Bridge, error) {
	if c.DeviceID == "" {
		return nil, errors.New("device id must be specified")
	}
	b, err := mqttbridge.NewBridge(c.MQTTBrokerURL, c.DeviceID, client)
	if err != nil {
		return nil, errors.Wrap(err, "create MQTT bridge")
	}
	b.Interval = c.TelemetryInterval
	b.RequestTimeout = c.RequestTimeout
	return b, nil
}
