package dig_container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/jarida/apps/api/echo"
	"github.com/trezcool/jarida/apps/api/scheduler"
	"github.com/trezcool/jarida/core"
)

func TestNew(t *testing.T) {
	c := New(dig.DryRun(true))

	err := c.Invoke(func(
		conf *core.Config,
		logger core.Logger,
		dbLogger DBLoggerParam,
		server *echoapi.Server,
		jobs *scheduler.Scheduler,
	) {
	})
	assert.NoError(t, err)
}
