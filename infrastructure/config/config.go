package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/taosdata/bouncerkeeper/infrastructure/log"
	"github.com/taosdata/bouncerkeeper/util/pool"
	"github.com/taosdata/bouncerkeeper/version"
	"github.com/taosdata/go-utils/web"
)

var ErrUsage = errors.New("usage error")

type Config struct {
	Cors             web.CorsConfig `toml:"cors" mapstructure:"cors"`
	Debug            bool           `toml:"debug" mapstructure:"debug"`
	Port             int            `toml:"port" mapstructure:"port"`
	LogLevel         string         `toml:"loglevel" mapstructure:"loglevel"`
	GoPoolSize       int            `toml:"gopoolsize" mapstructure:"gopoolsize"`
	RotationInterval string         `toml:"RotationInterval" mapstructure:"RotationInterval"`
	Daemon           bool           `toml:"daemon" mapstructure:"daemon"`
	PgBouncer        PgBouncer      `toml:"pgbouncer" mapstructure:"pgbouncer"`
	Metrics          MetricsConfig  `toml:"metrics" mapstructure:"metrics"`
	Log              Log            `toml:"log" mapstructure:"log"`

	ListQueries  bool `toml:"-" mapstructure:"-"`
	PrintVersion bool `toml:"-" mapstructure:"-"`
}

type PgBouncer struct {
	Host     string `toml:"host" mapstructure:"host"`
	Port     int    `toml:"port" mapstructure:"port"`
	Username string `toml:"username" mapstructure:"username"`
	Password string `toml:"password" mapstructure:"password"`
	DBName   string `toml:"dbname" mapstructure:"dbname"`
	DSN      string `toml:"dsn" mapstructure:"dsn"`
	Timeout  string `toml:"timeout" mapstructure:"timeout"`
}

func (conf *PgBouncer) Init() {
	if conf.Host == "" {
		conf.Host = "127.0.0.1"
	}
	if conf.Port == 0 {
		conf.Port = 6432
	}
	if conf.DBName == "" {
		conf.DBName = "pgbouncer"
	}
	if conf.Timeout == "" {
		conf.Timeout = "5s"
	}
}

// ConnString renders a keyword/value connection string, unset credentials are left to libpq defaults.
func (conf *PgBouncer) ConnString() string {
	if conf.DSN != "" {
		return conf.DSN
	}
	parts := []string{
		"host=" + quoteConnValue(conf.Host),
		"port=" + strconv.Itoa(conf.Port),
		"dbname=" + quoteConnValue(conf.DBName),
	}
	if conf.Username != "" {
		parts = append(parts, "user="+quoteConnValue(conf.Username))
	}
	if conf.Password != "" {
		parts = append(parts, "password="+quoteConnValue(conf.Password))
	}
	return strings.Join(parts, " ")
}

func (conf *PgBouncer) QueryTimeout() time.Duration {
	d, err := time.ParseDuration(conf.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

var Conf *Config

// flag name -> config key
var flagKeys = map[string]string{
	"host":       "pgbouncer.host",
	"port":       "pgbouncer.port",
	"username":   "pgbouncer.username",
	"password":   "pgbouncer.password",
	"dbname":     "pgbouncer.dbname",
	"dsn":        "pgbouncer.dsn",
	"timeout":    "pgbouncer.timeout",
	"prefix":     "metrics.prefix",
	"tag-key":    "metrics.tagkey",
	"identity":   "metrics.identity",
	"format":     "metrics.format",
	"validate":   "metrics.validate",
	"schema":     "metrics.schema",
	"log-level":  "loglevel",
	"log-path":   "log.path",
	"daemon":     "daemon",
	"interval":   "RotationInterval",
	"http-port":  "port",
	"gopoolsize": "gopoolsize",
	"debug":      "debug",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("bouncerkeeper", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "bouncerkeeper config file")
	fs.StringP("host", "h", "127.0.0.1", "PgBouncer host or IP")
	fs.IntP("port", "p", 6432, "PgBouncer port")
	fs.StringP("username", "U", "", "a valid user from the PgBouncer stats_users config")
	fs.StringP("password", "W", "", "password for username")
	fs.String("dbname", "pgbouncer", "PgBouncer admin console database")
	fs.String("dsn", "", "full connection string, overrides host, port, username and password")
	fs.String("timeout", "5s", "timeout for connecting and for each admin query")
	fs.String("prefix", "pgbouncer", "measurement name prefix")
	fs.String("tag-key", "server", "name of the identifying tag attached to every line")
	fs.String("identity", "", "identifying tag value, default is the local hostname")
	fs.String("format", FormatPlain, "output format: plain or influx")
	fs.Bool("validate", false, "parse every line back before writing it")
	fs.String("schema", "", "TOML file with extra column classifications")
	fs.StringP("log-level", "l", "info", "log level")
	fs.String("log-path", "", "directory for rotated log files, default stderr")
	fs.Bool("daemon", false, "poll on an interval instead of once")
	fs.String("interval", "15s", "poll interval in daemon mode")
	fs.Int("http-port", 6044, "health and self metrics port in daemon mode")
	fs.Int("gopoolsize", 8, "goroutine pool size in daemon mode")
	fs.Bool("debug", false, "debug mode for the http router")
	fs.Bool("list", false, "print the supported query types and exit")
	fs.BoolP("version", "V", false, "print the version and exit")
	return fs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pgbouncer.host", "127.0.0.1")
	v.SetDefault("pgbouncer.port", 6432)
	v.SetDefault("pgbouncer.username", "")
	v.SetDefault("pgbouncer.password", "")
	v.SetDefault("pgbouncer.dbname", "pgbouncer")
	v.SetDefault("pgbouncer.dsn", "")
	v.SetDefault("pgbouncer.timeout", "5s")
	v.SetDefault("metrics.prefix", "pgbouncer")
	v.SetDefault("metrics.tagkey", "server")
	v.SetDefault("metrics.identity", "")
	v.SetDefault("metrics.format", FormatPlain)
	v.SetDefault("metrics.validate", false)
	v.SetDefault("metrics.schema", "")
	v.SetDefault("metrics.queries", []string{})
	v.SetDefault("loglevel", "info")
	v.SetDefault("log.path", "")
	v.SetDefault("daemon", false)
	v.SetDefault("RotationInterval", "15s")
	v.SetDefault("port", 6044)
	v.SetDefault("gopoolsize", 8)
	v.SetDefault("debug", false)
}

// Load builds the configuration from defaults, the config file, BOUNCERKEEPER_* environment variables and args,
// later sources win. Positional args are query types.
func Load(args []string) (*Config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUsage, err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("bouncerkeeper")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, err
		}
	}

	if cp, _ := fs.GetString("config"); cp != "" {
		v.SetConfigFile(cp)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cp, err)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	conf.ListQueries, _ = fs.GetBool("list")
	conf.PrintVersion, _ = fs.GetBool("version")
	if fs.NArg() > 0 {
		conf.Metrics.Queries = append([]string(nil), fs.Args()...)
	}

	if err := conf.Init(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (conf *Config) Init() error {
	conf.PgBouncer.Init()
	conf.Log.Init()
	conf.Cors.Init()
	if err := conf.Metrics.MetricsInit(); err != nil {
		return fmt.Errorf("%w: %s", ErrUsage, err)
	}
	if conf.Port == 0 {
		conf.Port = 6044
	}
	if conf.LogLevel == "" {
		conf.LogLevel = "info"
	}
	if conf.GoPoolSize == 0 {
		conf.GoPoolSize = 8
	}
	if conf.RotationInterval == "" {
		conf.RotationInterval = "15s"
	}
	if _, err := conf.Interval(); err != nil {
		return fmt.Errorf("%w: invalid interval %q", ErrUsage, conf.RotationInterval)
	}
	if !conf.ListQueries && !conf.PrintVersion && len(conf.Metrics.Queries) == 0 {
		return fmt.Errorf("%w: no query type given", ErrUsage)
	}
	return nil
}

func (conf *Config) Interval() (time.Duration, error) {
	interval, err := time.ParseDuration(conf.RotationInterval)
	if err != nil {
		return 0, err
	}
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	return interval, nil
}

// InitConfig loads the process configuration from os.Args and sets up logging and the goroutine pool.
// Usage errors print the flag help and exit with code 1.
func InitConfig() *Config {
	conf, err := Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, ErrUsage) {
			fmt.Fprintf(os.Stderr, "usage: bouncerkeeper [flags] <query type>...\n%s", newFlagSet().FlagUsages())
		}
		os.Exit(1)
	}
	if conf.PrintVersion {
		fmt.Printf("%s\n", version.Version)
		os.Exit(0)
	}

	if err = log.SetLevel(conf.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err = log.ConfigLog(conf.Log.Path, conf.Log.RotationCount, conf.Log.RotationTime, conf.Log.RotationSize); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	pool.Init(conf.GoPoolSize)
	Conf = conf
	return conf
}
