package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the daemon configuration, loaded from an HCL file.
type Config struct {
	Server   *ServerSettings   `hcl:"server,block"`
	Database *DatabaseSettings `hcl:"database,block"`
	Rooms    []RoomSettings    `hcl:"room,block"`
}

// ServerSettings contains server-level configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// DatabaseSettings names the backing store.
type DatabaseSettings struct {
	Driver string `hcl:"driver,optional"`
	DSN    string `hcl:"dsn,optional"`
}

// RoomSettings defines one room to create at boot.
type RoomSettings struct {
	Name           string `hcl:"name,label"`
	MaxSeats       int    `hcl:"max_seats,optional"`
	SmallBlind     int64  `hcl:"small_blind"`
	BigBlind       int64  `hcl:"big_blind"`
	BuyInMin       int64  `hcl:"buy_in_min,optional"`
	BuyInMax       int64  `hcl:"buy_in_max,optional"`
	AutoStartDelay int    `hcl:"auto_start_delay,optional"`
	InviteOnly     bool   `hcl:"invite_only,optional"`
}

// DefaultConfig returns the configuration used when no file exists: a
// sqlite store next to the binary and one public micro-stakes room.
func DefaultConfig() *Config {
	return &Config{
		Server: &ServerSettings{
			Address:  "localhost:8080",
			LogLevel: "info",
		},
		Database: &DatabaseSettings{
			Driver: "sqlite3",
			DSN:    "holdemd.db",
		},
		Rooms: []RoomSettings{
			{
				Name:       "main",
				MaxSeats:   6,
				SmallBlind: 1,
				BigBlind:   2,
				BuyInMin:   100,
				BuyInMax:   1000,
			},
		},
	}
}

// LoadConfig loads configuration from an HCL file. A missing file yields
// the defaults; a present file is decoded and back-filled with them.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	if config.Server == nil {
		config.Server = &ServerSettings{}
	}
	if config.Server.Address == "" {
		config.Server.Address = "localhost:8080"
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}

	if config.Database == nil {
		config.Database = &DatabaseSettings{}
	}
	if config.Database.Driver == "" {
		config.Database.Driver = "sqlite3"
	}
	if config.Database.DSN == "" {
		config.Database.DSN = "holdemd.db"
	}

	for i := range config.Rooms {
		if config.Rooms[i].MaxSeats == 0 {
			config.Rooms[i].MaxSeats = 6
		}
		if config.Rooms[i].BuyInMin == 0 {
			config.Rooms[i].BuyInMin = config.Rooms[i].BigBlind * 50 // 50 big blinds minimum
		}
		if config.Rooms[i].BuyInMax == 0 {
			config.Rooms[i].BuyInMax = config.Rooms[i].BigBlind * 500 // 500 big blinds maximum
		}
	}

	return &config, nil
}

// Validate checks the configuration for operator mistakes.
func (c *Config) Validate() error {
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}

	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn must not be empty")
	}

	for _, room := range c.Rooms {
		if room.SmallBlind <= 0 {
			return fmt.Errorf("room %s: small blind must be positive", room.Name)
		}
		if room.BigBlind != 2*room.SmallBlind {
			return fmt.Errorf("room %s: big blind must be exactly twice the small blind", room.Name)
		}
		if room.MaxSeats < 2 || room.MaxSeats > 9 {
			return fmt.Errorf("room %s: max seats must be between 2 and 9", room.Name)
		}
		if room.BuyInMin < room.BigBlind {
			return fmt.Errorf("room %s: buy-in minimum must cover the big blind", room.Name)
		}
		if room.BuyInMin > room.BuyInMax {
			return fmt.Errorf("room %s: buy-in minimum must not exceed maximum", room.Name)
		}
		if room.AutoStartDelay < 0 {
			return fmt.Errorf("room %s: auto start delay must not be negative", room.Name)
		}
	}

	return nil
}
