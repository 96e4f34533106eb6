// Package autoload initializes the global logger from the LOG_* environment
// on import. Blank-import it from main.
package autoload

import (
	configx "github.com/vyaparlabs/vyapar/pkg/config"
	logx "github.com/vyaparlabs/vyapar/pkg/logger"
)

func init() {
	cfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*cfg)
}
