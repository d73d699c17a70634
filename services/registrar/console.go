package registrarsvc

import (
	"context"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/publication"
)

type consoleRegistrar struct {
	logger core.Logger
}

var _ publication.Registrar = (*consoleRegistrar)(nil)

// NewConsoleRegistrar logs deposits and always accepts them (development and tests).
func NewConsoleRegistrar(logger core.Logger) publication.Registrar {
	return &consoleRegistrar{logger: logger}
}

func (r *consoleRegistrar) Deposit(_ context.Context, req publication.DepositRequest) (publication.DepositResult, error) {
	r.logger.Info("registrarsvc.console: deposit "+req.DOI, map[string]interface{}{
		"batch_id": req.BatchID,
		"filename": req.Filename,
		"size":     len(req.XML),
	})
	return publication.DepositResult{BatchID: req.BatchID, Status: "registered", Message: "console deposit"}, nil
}

// New picks the Crossref registrar when it is enabled.
func New(conf *core.Config, logger core.Logger) publication.Registrar {
	if conf.Registrar.Enabled {
		return NewCrossrefRegistrar(conf, logger)
	}
	return NewConsoleRegistrar(logger)
}
