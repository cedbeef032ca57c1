// Package config loads application configuration via viper.
package config

import (
	"github.com/spf13/viper"
)

// ConversionConfig maps conversion target types to project-type names and
// carries the planner's heuristic thresholds. The name mapping replaces
// hard-coded project-type lookups so administrators can rename their
// pipeline without a code change.
type ConversionConfig struct {
	DealProjectTypeName string `mapstructure:"deal_project_type_name"`
	LeadProjectTypeName string `mapstructure:"lead_project_type_name"`

	HighScoreThreshold      int     `mapstructure:"high_score_threshold"`
	QualifiedScoreThreshold int     `mapstructure:"qualified_score_threshold"`
	HotDealAmount           float64 `mapstructure:"hot_deal_amount"`
	QualifiedDealAmount     float64 `mapstructure:"qualified_deal_amount"`
}

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`

	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`

	Auth struct {
		IssuerURL    string `mapstructure:"issuer_url"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		RedirectURL  string `mapstructure:"redirect_url"`
	} `mapstructure:"auth"`

	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`

	Conversion ConversionConfig `mapstructure:"conversion"`
}

// LoadConfig loads the configuration from a file and the environment. An
// explicit path wins over the search path.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional when env vars cover everything
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", 5432)
	viper.SetDefault("db.sslmode", "disable")

	viper.SetDefault("conversion.deal_project_type_name", "Sales Deal")
	viper.SetDefault("conversion.lead_project_type_name", "Lead Qualification")
	viper.SetDefault("conversion.high_score_threshold", 80)
	viper.SetDefault("conversion.qualified_score_threshold", 60)
	viper.SetDefault("conversion.hot_deal_amount", 10000)
	viper.SetDefault("conversion.qualified_deal_amount", 1000)
}
