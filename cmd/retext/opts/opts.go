package opts

import (
	"github.com/walteh/retext/pkg/config"
	"github.com/walteh/retext/pkg/status"
)

// RootOpts contains shared options used by all commands
type RootOpts struct {
	Config     *config.Config
	UserLogger *status.UserLogger
}
