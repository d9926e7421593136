// Package handlers holds what every handler family shares. The families
// themselves live in sub-packages.
package handlers

import (
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
)

const (
	// error msgs
	PosterNilErrMsg = "webhook poster is nil"
)

// Registrar is implemented by every handler family. Register binds the
// family's kinds on r during cold start.
type Registrar interface {
	Register(r *registry.Registry) error
}

// RegisterAll registers every family on r, stopping at the first failure.
func RegisterAll(r *registry.Registry, families ...Registrar) error {
	for _, f := range families {
		if err := f.Register(r); err != nil {
			return err
		}
	}
	return nil
}

// LogAndReturnError centralizes error logging
func LogAndReturnError(er error, applogger logger.Logger) error {
	applogger.Error("Handler error: %v", er.Error())
	return er
}
