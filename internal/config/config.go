package config

import (
	"time"

	"github.com/g3trade/futures-gateway/internal/model"
)

// GatewayConfig is the root configuration for a gateway instance.
type GatewayConfig struct {
	Instance InstanceConfig  `yaml:"instance"`
	Accounts []AccountConfig `yaml:"accounts"`
	Registry RegistryConfig  `yaml:"registry"`
	Feed     FeedConfig      `yaml:"feed"`
	Journal  JournalConfig   `yaml:"journal"`
}

// InstanceConfig identifies this gateway.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// AccountConfig describes one desired trading account.
type AccountConfig struct {
	BrokerID    string `yaml:"broker_id"`
	AccountID   string `yaml:"account_id"`
	Password    string `yaml:"password"`
	AuthCode    string `yaml:"auth_code"`
	ProductInfo string `yaml:"product_info"`
	AppID       string `yaml:"app_id"`
	TradeFront  string `yaml:"trade_front"`
	NameServer  string `yaml:"name_server"`
}

// RegistryConfig holds session registry settings.
type RegistryConfig struct {
	EventBufferSize int           `yaml:"event_buffer_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// FeedConfig holds the websocket event feed settings.
type FeedConfig struct {
	Enabled      bool `yaml:"enabled"`
	Port         int  `yaml:"port"`
	ClientBuffer int  `yaml:"client_buffer"`
}

// JournalConfig holds the optional domain-event journal settings.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	DB            DBConfig      `yaml:"db"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single Postgres connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Descriptor converts an account entry to its domain descriptor.
func (a AccountConfig) Descriptor() model.AccountDescriptor {
	return model.AccountDescriptor{
		BrokerID:    a.BrokerID,
		AccountID:   a.AccountID,
		Password:    a.Password,
		AuthCode:    a.AuthCode,
		ProductInfo: a.ProductInfo,
		AppID:       a.AppID,
		TradeFront:  a.TradeFront,
		NameServer:  a.NameServer,
	}
}

// ToDescriptors converts all configured accounts to domain descriptors.
func (c *GatewayConfig) ToDescriptors() []model.AccountDescriptor {
	out := make([]model.AccountDescriptor, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		out = append(out, a.Descriptor())
	}
	return out
}
