package sh

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	mqttbridge "github.com/robotalks/motorlink/pkg/bridge/mqtt"
	"github.com/robotalks/motorlink/pkg/env"
	"github.com/robotalks/motorlink/pkg/l0/comm"
	"github.com/robotalks/motorlink/pkg/l0/host"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *Conn
}

// Conn is a running host client.
type Conn struct {
	Ctx    context.Context
	Cancel func()
	URL    string
	Client *host.Client
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	s.Shell.NotFound(MustBeConnected(func(c *ishell.Context) {
		DoConsole(c, strings.Join(c.Args, " "))
	}))
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// ClientFrom gets the connected client from ishell context.
func ClientFrom(c *ishell.Context) *host.Client {
	if conn := ShellFrom(c).Conn; conn != nil {
		return conn.Client
	}
	return nil
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// RequestContext creates the context for a request to the device.
func (s *Shell) RequestContext() (context.Context, context.CancelFunc) {
	parent := context.Background()
	if s.Conn != nil {
		parent = s.Conn.Ctx
	}
	return context.WithTimeout(parent, s.Config.RequestTimeout)
}

// DoConsole runs a device console command and prints the response.
func DoConsole(c *ishell.Context, line string) error {
	s := ShellFrom(c)
	ctx, cancel := s.RequestContext()
	defer cancel()
	resp, err := s.Conn.Client.Console(ctx, line)
	if err != nil {
		c.Err(err)
		return err
	}
	c.Print(resp)
	return nil
}

// DoTelemetry requests telemetry and prints it.
func DoTelemetry(c *ishell.Context) error {
	s := ShellFrom(c)
	ctx, cancel := s.RequestContext()
	defer cancel()
	data, err := s.Conn.Client.Telemetry(ctx)
	if err != nil {
		c.Err(err)
		return err
	}
	if s.OutputJSON {
		out, err := mqttbridge.TelemetryJSON(data)
		if err != nil {
			c.Err(err)
			return err
		}
		c.Println(out)
		return nil
	}
	c.Print(FormatTelemetry(data))
	return nil
}

// Done prints the result of a command without reply.
func Done(c *ishell.Context, err error) {
	if err != nil {
		c.Err(err)
		return
	}
	if ShellFrom(c).OutputJSON {
		c.Println(`{"ok":true}`)
		return
	}
	c.Println("OK")
}

// FormatTelemetry prints telemetry into friendly string for display.
func FormatTelemetry(t *comm.Telemetry) string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "voltage         : %.2f V\n", t.Voltage)
	fmt.Fprintf(&w, "temperature     : %.2f C\n", t.Temperature)
	fmt.Fprintf(&w, "current q/d     : %.2f / %.2f A\n", t.CurrentQ, t.CurrentD)
	fmt.Fprintf(&w, "erpm            : %.0f\n", t.ERPM)
	fmt.Fprintf(&w, "command current : %.2f A\n", t.CommandCurrent)
	fmt.Fprintf(&w, "state/fault     : %d / %d\n", t.State, t.Fault)
	return w.String()
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Connect opens the transport at rawURL and announces the host.
func (s *Shell) Connect(rawURL string) error {
	conf := *s.Config
	conf.Transport = rawURL
	client, err := conf.NewClient()
	if err != nil {
		return err
	}
	conn := &Conn{URL: rawURL, Client: client}
	conn.Ctx, conn.Cancel = context.WithCancel(context.Background())
	go func() {
		if err := client.Run(conn.Ctx); err != nil && conn.Ctx.Err() == nil {
			glog.Errorf("connection %s error: %v", rawURL, err)
		}
	}()
	go func() {
		for {
			select {
			case <-conn.Ctx.Done():
				return
			case text := <-client.Output():
				s.Shell.Print(text)
			}
		}
	}()
	if err := client.Connect(); err != nil {
		conn.Cancel()
		client.Close()
		return err
	}
	s.Disconnect()
	s.Conn = conn
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", rawURL))
	return nil
}

// Disconnect disconnects current device.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Cancel()
		s.Conn.Client.Close()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.Transport != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.Transport)
		}
		if err := s.Connect(s.Config.Transport); err != nil {
			glog.Fatalf("connect %q failed: %v", s.Config.Transport, err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			glog.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	glog.Fatalln("command expected")
}

var (
	// ConnectCmd connects a device.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[URL]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			rawURL := s.Config.Transport
			if len(c.Args) > 0 {
				rawURL = c.Args[0]
			}
			if rawURL == "" {
				c.Err(fmt.Errorf("URL required"))
				return
			}
			Done(c, s.Connect(rawURL))
		},
	}

	// DisconnectCmd disconnects current device.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	if err := env.LoadDefault(); err != nil {
		glog.Fatalln(err)
	}
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
