package config

import (
	pluginconfig "github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
	serverconfig "github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/server/config"
)

type Config struct {
	serverconfig.HttpServer `mapstructure:",squash"`
	pluginconfig.Config     `mapstructure:",squash"`
}
