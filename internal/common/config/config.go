package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type BusConfig struct {
	Kind string // redis | rabbitmq
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RabbitConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DispatchConfig holds the bid-window tunables of the dispatcher.
type DispatchConfig struct {
	SpeedKmh         float64
	FixedOverheadMin float64
	BidWindow        time.Duration
	PollInterval     time.Duration
	RewardEUR        float64
}

// CourierConfig holds the movement tunables of a courier agent.
type CourierConfig struct {
	SpeedKmh         float64
	Tick             time.Duration
	Pause            time.Duration
	SelectionTimeout time.Duration
	PollInterval     time.Duration
	CenterLat        float64
	CenterLon        float64
	JitterKm         float64
}

type OrderSourceConfig struct {
	Lat           float64
	Lon           float64
	AssignTimeout time.Duration
	TrackTimeout  time.Duration
	PollInterval  time.Duration
	MenuCSV       string
}

type App struct {
	Bus         BusConfig
	Redis       RedisConfig
	Rabbit      RabbitConfig
	Database    DatabaseConfig
	Dispatch    DispatchConfig
	Courier     CourierConfig
	OrderSource OrderSourceConfig
}

func Defaults() App {
	return App{
		Bus:   BusConfig{Kind: "redis"},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Rabbit: RabbitConfig{
			Host: "localhost", Port: 5672, User: "guest", Password: "guest", VHost: "/",
		},
		Database: DatabaseConfig{Port: 5432, SSLMode: "disable"},
		Dispatch: DispatchConfig{
			SpeedKmh:         20,
			FixedOverheadMin: 0.5,
			BidWindow:        15 * time.Second,
			PollInterval:     200 * time.Millisecond,
			RewardEUR:        8.5,
		},
		Courier: CourierConfig{
			SpeedKmh:         20,
			Tick:             time.Second,
			Pause:            2 * time.Second,
			SelectionTimeout: 120 * time.Second,
			PollInterval:     200 * time.Millisecond,
			CenterLat:        48.8660,
			CenterLon:        2.3350,
			JitterKm:         0.3,
		},
		OrderSource: OrderSourceConfig{
			Lat:           48.8610,
			Lon:           2.3450,
			AssignTimeout: 60 * time.Second,
			TrackTimeout:  time.Hour,
			PollInterval:  200 * time.Millisecond,
			MenuCSV:       "menus.csv",
		},
	}
}

// Load reads a two-level YAML file: top-level section names followed by
// indented key: value pairs. Unknown sections and keys are ignored so the
// same file can feed every actor.
func Load(path string) (App, error) {
	f, err := os.Open(path)
	if err != nil {
		return App{}, err
	}
	defer f.Close()

	a := Defaults()
	var section string

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			section = strings.TrimSuffix(line, ":")
			continue
		}
		kv := strings.SplitN(line, ":", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := strings.Trim(strings.TrimSpace(kv[1]), `"'`)
		if i := strings.Index(val, " #"); i >= 0 {
			val = strings.TrimSpace(val[:i])
		}
		a.assign(section, key, val)
	}
	if err := sc.Err(); err != nil {
		return App{}, err
	}

	switch a.Bus.Kind {
	case "redis", "rabbitmq":
	default:
		return App{}, fmt.Errorf("bus.kind must be redis or rabbitmq, got %q", a.Bus.Kind)
	}
	return a, nil
}

func (a *App) assign(section, key, val string) {
	switch section {
	case "bus":
		if key == "kind" {
			a.Bus.Kind = val
		}
	case "redis":
		switch key {
		case "addr":
			a.Redis.Addr = val
		case "password":
			a.Redis.Password = val
		case "db":
			a.Redis.DB = atoi(val, a.Redis.DB)
		}
	case "rabbitmq":
		switch key {
		case "host":
			a.Rabbit.Host = val
		case "port":
			a.Rabbit.Port = atoi(val, a.Rabbit.Port)
		case "user":
			a.Rabbit.User = val
		case "password":
			a.Rabbit.Password = val
		case "vhost":
			a.Rabbit.VHost = val
		}
	case "database":
		switch key {
		case "host":
			a.Database.Host = val
		case "port":
			a.Database.Port = atoi(val, a.Database.Port)
		case "user":
			a.Database.User = val
		case "password":
			a.Database.Password = val
		case "database":
			a.Database.Database = val
		case "sslmode":
			a.Database.SSLMode = val
		}
	case "dispatch":
		switch key {
		case "speed_kmh":
			a.Dispatch.SpeedKmh = atof(val, a.Dispatch.SpeedKmh)
		case "fixed_overhead_min":
			a.Dispatch.FixedOverheadMin = atof(val, a.Dispatch.FixedOverheadMin)
		case "bid_window_s":
			a.Dispatch.BidWindow = seconds(val, a.Dispatch.BidWindow)
		case "poll_ms":
			a.Dispatch.PollInterval = millis(val, a.Dispatch.PollInterval)
		case "reward_eur":
			a.Dispatch.RewardEUR = atof(val, a.Dispatch.RewardEUR)
		}
	case "courier":
		switch key {
		case "speed_kmh":
			a.Courier.SpeedKmh = atof(val, a.Courier.SpeedKmh)
		case "tick_s":
			a.Courier.Tick = seconds(val, a.Courier.Tick)
		case "pause_s":
			a.Courier.Pause = seconds(val, a.Courier.Pause)
		case "selection_timeout_s":
			a.Courier.SelectionTimeout = seconds(val, a.Courier.SelectionTimeout)
		case "poll_ms":
			a.Courier.PollInterval = millis(val, a.Courier.PollInterval)
		case "center_lat":
			a.Courier.CenterLat = atof(val, a.Courier.CenterLat)
		case "center_lon":
			a.Courier.CenterLon = atof(val, a.Courier.CenterLon)
		case "jitter_km":
			a.Courier.JitterKm = atof(val, a.Courier.JitterKm)
		}
	case "ordersource":
		switch key {
		case "lat":
			a.OrderSource.Lat = atof(val, a.OrderSource.Lat)
		case "lon":
			a.OrderSource.Lon = atof(val, a.OrderSource.Lon)
		case "assign_timeout_s":
			a.OrderSource.AssignTimeout = seconds(val, a.OrderSource.AssignTimeout)
		case "track_timeout_s":
			a.OrderSource.TrackTimeout = seconds(val, a.OrderSource.TrackTimeout)
		case "poll_ms":
			a.OrderSource.PollInterval = millis(val, a.OrderSource.PollInterval)
		case "menu_csv":
			a.OrderSource.MenuCSV = val
		}
	}
}

func atoi(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func atof(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func seconds(s string, def time.Duration) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return time.Duration(f * float64(time.Second))
}

func millis(s string, def time.Duration) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return time.Duration(f * float64(time.Millisecond))
}
