package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "MOVESYNC_"

// Client configures the movement client.
type Client struct {
	Addr string // host:port for TCP, or a ws:// / wss:// URL

	PollInterval time.Duration // how often the background poller reads remote positions
	PollWait     time.Duration // longest a poll may wait for queued bytes
	DialTimeout  time.Duration
	WriteTimeout time.Duration // 0 disables the write deadline

	ReconnectAttempts    uint64
	ReconnectMaxInterval time.Duration

	LogFile  string
	LogLevel string

	Headless bool
	Ticks    int // headless only; 0 runs until interrupted
	TPS      int // headless only
}

func DefaultClient() Client {
	return Client{
		Addr:                 "localhost:7878",
		PollInterval:         50 * time.Millisecond,
		PollWait:             time.Millisecond,
		DialTimeout:          5 * time.Second,
		WriteTimeout:         2 * time.Second,
		ReconnectAttempts:    5,
		ReconnectMaxInterval: 2 * time.Second,
		LogLevel:             "info",
		TPS:                  60,
	}
}

// Server configures the relay server.
type Server struct {
	TCPAddr           string
	WSAddr            string // empty disables the WebSocket endpoint
	BroadcastInterval time.Duration

	LogFile  string
	LogLevel string
}

func DefaultServer() Server {
	return Server{
		TCPAddr:           ":7878",
		WSAddr:            ":7777",
		BroadcastInterval: 50 * time.Millisecond,
		LogLevel:          "info",
	}
}

// LoadClient reads defaults, an optional .env file, MOVESYNC_* variables and
// finally the command line arguments, in increasing precedence.
func LoadClient(args []string) (Client, error) {
	if err := loadDotEnv(); err != nil {
		return Client{}, err
	}

	c := DefaultClient()
	env := envReader{}
	c.Addr = env.str("ADDR", c.Addr)
	c.PollInterval = env.duration("POLL_INTERVAL", c.PollInterval)
	c.PollWait = env.duration("POLL_WAIT", c.PollWait)
	c.DialTimeout = env.duration("DIAL_TIMEOUT", c.DialTimeout)
	c.WriteTimeout = env.duration("WRITE_TIMEOUT", c.WriteTimeout)
	c.ReconnectAttempts = env.uint("RECONNECT_ATTEMPTS", c.ReconnectAttempts)
	c.ReconnectMaxInterval = env.duration("RECONNECT_MAX_INTERVAL", c.ReconnectMaxInterval)
	c.LogFile = env.str("LOG_FILE", c.LogFile)
	c.LogLevel = env.str("LOG_LEVEL", c.LogLevel)
	if env.err != nil {
		return Client{}, env.err
	}

	flags := flag.NewFlagSet("movesync", flag.ContinueOnError)
	flags.StringVar(&c.Addr, "addr", c.Addr, "server address, host:port or ws://host:port/ws")
	flags.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "remote position poll interval")
	flags.DurationVar(&c.PollWait, "poll-wait", c.PollWait, "max wait for queued bytes per poll")
	flags.DurationVar(&c.DialTimeout, "dial-timeout", c.DialTimeout, "connection timeout")
	flags.DurationVar(&c.WriteTimeout, "write-timeout", c.WriteTimeout, "batch write timeout (0 = none)")
	flags.Uint64Var(&c.ReconnectAttempts, "reconnect-attempts", c.ReconnectAttempts, "reconnect attempts before giving up")
	flags.DurationVar(&c.ReconnectMaxInterval, "reconnect-max-interval", c.ReconnectMaxInterval, "max backoff between reconnect attempts")
	flags.StringVar(&c.LogFile, "log-file", c.LogFile, "rolling log file (empty = stderr only)")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	flags.BoolVar(&c.Headless, "headless", c.Headless, "run without a window, sending idle ticks")
	flags.IntVar(&c.Ticks, "ticks", c.Ticks, "headless: stop after this many ticks (0 = forever)")
	flags.IntVar(&c.TPS, "tps", c.TPS, "headless: ticks per second")
	if err := flags.Parse(args); err != nil {
		return Client{}, err
	}

	return c, c.Validate()
}

func (c Client) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("config: empty server address")
	case c.PollInterval <= 0:
		return errors.New("config: poll interval must be positive")
	case c.PollWait <= 0:
		return errors.New("config: poll wait must be positive")
	case c.DialTimeout <= 0:
		return errors.New("config: dial timeout must be positive")
	case c.WriteTimeout < 0:
		return errors.New("config: write timeout must not be negative")
	case c.ReconnectMaxInterval <= 0:
		return errors.New("config: reconnect interval must be positive")
	case c.Headless && c.TPS <= 0:
		return errors.New("config: tps must be positive")
	case c.Ticks < 0:
		return errors.New("config: ticks must not be negative")
	}
	return nil
}

func LoadServer(args []string) (Server, error) {
	if err := loadDotEnv(); err != nil {
		return Server{}, err
	}

	s := DefaultServer()
	env := envReader{}
	s.TCPAddr = env.str("TCP_ADDR", s.TCPAddr)
	s.WSAddr = env.str("WS_ADDR", s.WSAddr)
	s.BroadcastInterval = env.duration("BROADCAST_INTERVAL", s.BroadcastInterval)
	s.LogFile = env.str("LOG_FILE", s.LogFile)
	s.LogLevel = env.str("LOG_LEVEL", s.LogLevel)
	if env.err != nil {
		return Server{}, env.err
	}

	flags := flag.NewFlagSet("movesync-server", flag.ContinueOnError)
	flags.StringVar(&s.TCPAddr, "tcp", s.TCPAddr, "TCP listen address")
	flags.StringVar(&s.WSAddr, "ws", s.WSAddr, "WebSocket listen address (empty = disabled)")
	flags.DurationVar(&s.BroadcastInterval, "broadcast-interval", s.BroadcastInterval, "position broadcast interval")
	flags.StringVar(&s.LogFile, "log-file", s.LogFile, "rolling log file (empty = stderr only)")
	flags.StringVar(&s.LogLevel, "log-level", s.LogLevel, "debug, info, warn or error")
	if err := flags.Parse(args); err != nil {
		return Server{}, err
	}

	return s, s.Validate()
}

func (s Server) Validate() error {
	if s.TCPAddr == "" && s.WSAddr == "" {
		return errors.New("config: no listen address")
	}
	if s.BroadcastInterval <= 0 {
		return errors.New("config: broadcast interval must be positive")
	}
	return nil
}

func loadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load .env: %w", err)
	}
	return nil
}

// envReader reads MOVESYNC_* variables and remembers the first parse error.
type envReader struct {
	err error
}

func (e *envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		return v
	}
	return def
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return d
}

func (e *envReader) uint(key string, def uint64) uint64 {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return n
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
	}
}
